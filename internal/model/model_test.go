package model

import "testing"

func TestNewPlaylistAssignsIndexes(t *testing.T) {
	p := NewPlaylist("PL1", "Mix", "Chan", "https://example.com/list", []Video{
		{ID: "a"},
		{ID: "b", Index: 7},
		{ID: "c"},
	})
	want := []int{1, 7, 3}
	for i, v := range p.Videos {
		if v.Index != want[i] {
			t.Errorf("video %s index = %d, want %d", v.ID, v.Index, want[i])
		}
	}
	if p.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", p.Len())
	}
}

func TestPlaylistDirName(t *testing.T) {
	tests := []struct {
		playlist Playlist
		expected string
	}{
		{Playlist{Title: "Mix", Channel: "Chan"}, "Mix (Chan)"},
		{Playlist{Title: "Mix"}, "Mix"},
		{Playlist{ID: "PL1", Channel: "Chan"}, "PL1 (Chan)"},
		{Playlist{}, "playlist"},
	}
	for _, test := range tests {
		if got := test.playlist.DirName(); got != test.expected {
			t.Errorf("DirName() = %q, expected %q", got, test.expected)
		}
	}
}

func TestVideoLabel(t *testing.T) {
	tests := []struct {
		video    Video
		expected string
	}{
		{Video{Title: "Intro", Index: 2}, "2. Intro"},
		{Video{URL: "https://youtu.be/x", Index: 1}, "1. https://youtu.be/x"},
		{Video{ID: "x"}, "x"},
	}
	for _, test := range tests {
		if got := test.video.Label(); got != test.expected {
			t.Errorf("Label() = %q, expected %q", got, test.expected)
		}
	}
}

func TestTaskStatus(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		finished bool
		label    string
	}{
		{TaskStatusPending, false, "..."},
		{TaskStatusDownloading, false, "..."},
		{TaskStatusCompleted, true, "OK"},
		{TaskStatusError, true, "FAIL"},
		{TaskStatusSkipped, true, "SKIP"},
	}
	for _, test := range tests {
		if got := test.status.IsFinished(); got != test.finished {
			t.Errorf("%s.IsFinished() = %v, expected %v", test.status, got, test.finished)
		}
		if got := test.status.Label(); got != test.label {
			t.Errorf("%s.Label() = %q, expected %q", test.status, got, test.label)
		}
	}
}
