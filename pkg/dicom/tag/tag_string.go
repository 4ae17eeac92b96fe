package tag

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// String formats the tag as (GGGG,EEEE)
func (t Tag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

// MarshalText encodes the tag as (GGGG,EEEE), so JSON carries it as a string.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts anything Parse does.
func (t *Tag) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

var (
	keywordsOnce sync.Once
	keywords     map[string]Tag
)

// ByKeyword returns the dictionary tag whose name is keyword, e.g. "PatientName".
func ByKeyword(keyword string) (Tag, bool) {
	keywordsOnce.Do(func() {
		keywords = make(map[string]Tag, len(dictionary))
		for t, e := range dictionary {
			keywords[e.Name] = t
		}
	})
	t, ok := keywords[keyword]
	return t, ok
}

// Parse reads a tag written as (GGGG,EEEE), GGGG,EEEE, GGGGEEEE or a dictionary keyword.
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if t, ok := ByKeyword(s); ok {
		return t, nil
	}
	hex := strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	hex = strings.ReplaceAll(hex, ",", "")
	if len(hex) != 8 {
		return Tag{}, fmt.Errorf("tag: cannot parse %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Tag{}, fmt.Errorf("tag: cannot parse %q: %w", s, err)
	}
	return New(uint16(v>>16), uint16(v)), nil
}
