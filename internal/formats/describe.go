package formats

import (
	"fmt"
	"strings"
)

// Describe renders a candidate as e.g. "1080p (avc1+mp4a) ~5MB".
func Describe(c Candidate) string {
	return describe(c, c.Size, approxMB)
}

// DescribeWithTotal renders a candidate with an aggregate playlist size
// instead of its own, switching to GB above 1024MB.
func DescribeWithTotal(c Candidate, total int64) string {
	return describe(c, total, HumanSize)
}

func describe(c Candidate, size int64, sizeFn func(int64) string) string {
	var b strings.Builder
	if c.Height > 0 {
		fmt.Fprintf(&b, "%dp", c.Height)
	} else {
		b.WriteString("Audio")
	}
	video := codecFamily(c.VideoCodec)
	audio := codecFamily(c.AudioCodec)
	switch {
	case video != "" && audio != "":
		fmt.Fprintf(&b, " (%s+%s)", video, audio)
	case video != "":
		fmt.Fprintf(&b, " (%s)", video)
	case audio != "":
		fmt.Fprintf(&b, " (%s)", audio)
	}
	if size > 0 {
		b.WriteString(" ")
		b.WriteString(sizeFn(size))
	}
	return b.String()
}

// HumanSize formats a byte count as "~12MB" or "~1.4GB".
func HumanSize(n int64) string {
	mb := float64(n) / 1024 / 1024
	if mb >= 1024 {
		return fmt.Sprintf("~%.1fGB", mb/1024)
	}
	return fmt.Sprintf("~%.0fMB", mb)
}

func approxMB(n int64) string {
	return fmt.Sprintf("~%.0fMB", float64(n)/1024/1024)
}

// codecFamily strips the profile suffix: "avc1.640028" -> "avc1".
func codecFamily(codec string) string {
	if codec == "" || codec == noneCodec {
		return ""
	}
	family, _, _ := strings.Cut(codec, ".")
	return family
}
