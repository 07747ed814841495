package models

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// DownloadPreferences is the set of spotdl download settings attached to a request.
//
// Treat values as immutable: [DownloadPreferences.Hash] is derived from every field and
// takes part in task and notification ids.
type DownloadPreferences struct {
	Format         string
	Bitrate        string
	OutputTemplate string
	OutputDir      string
	Threads        int
	Lyrics         []string
	AudioProviders []string
	SkipExplicit   bool
	GenerateLRC    bool
	SponsorBlock   bool
}

// canonical renders every field in a fixed order.
func (p DownloadPreferences) canonical() string {
	var b strings.Builder
	field := func(k, v string) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(v))
		b.WriteByte(';')
	}
	field("format", p.Format)
	field("bitrate", p.Bitrate)
	field("output", p.OutputTemplate)
	field("dir", p.OutputDir)
	field("threads", strconv.Itoa(p.Threads))
	field("lyrics", strings.Join(p.Lyrics, ","))
	field("providers", strings.Join(p.AudioProviders, ","))
	field("skip_explicit", strconv.FormatBool(p.SkipExplicit))
	field("lrc", strconv.FormatBool(p.GenerateLRC))
	field("sponsor_block", strconv.FormatBool(p.SponsorBlock))
	return b.String()
}

// Hash returns a 32-bit FNV-1a hash of the preferences. Equal field values always hash equally.
func (p DownloadPreferences) Hash() uint32 {
	h := fnv.New32a()
	h.Write([]byte(p.canonical()))
	return h.Sum32()
}

// HashString is [DownloadPreferences.Hash] in decimal, as used in task ids.
func (p DownloadPreferences) HashString() string {
	return strconv.FormatUint(uint64(p.Hash()), 10)
}

// Equal reports structural equality.
func (p DownloadPreferences) Equal(o DownloadPreferences) bool {
	return p.canonical() == o.canonical()
}

func (p DownloadPreferences) String() string {
	return fmt.Sprintf("format=%s bitrate=%s threads=%d", p.Format, p.Bitrate, p.Threads)
}
