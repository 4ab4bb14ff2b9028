// Package editor 保存编辑会话中的界面状态。
package editor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Section 是可折叠的编辑分区。
type Section uint8

const (
	noSection Section = iota
	Experience
	Education
	Skills
	Languages
	Interests
)

// Sections 按展示顺序列出全部分区。
var Sections = []Section{Experience, Education, Skills, Languages, Interests}

var sectionNames = map[Section]string{
	Experience: "experience",
	Education:  "education",
	Skills:     "skills",
	Languages:  "languages",
	Interests:  "interests",
}

func (s Section) String() string {
	if name, ok := sectionNames[s]; ok {
		return name
	}
	return ""
}

func (s Section) Valid() bool {
	_, ok := sectionNames[s]
	return ok
}

// ParseSection 大小写不敏感地解析分区名。
func ParseSection(name string) (Section, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range sectionNames {
		if n == name {
			return s, nil
		}
	}
	return noSection, fmt.Errorf("unknown section %q", name)
}

func (s Section) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Section) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*s = noSection
		return nil
	}
	parsed, err := ParseSection(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Accordion 最多只有一个展开的分区：状态只记录当前展开的那一个。
// 零值表示全部折叠。
type Accordion struct {
	open Section
}

// NewAccordion 返回初始状态：Experience 展开。
func NewAccordion() Accordion {
	return Accordion{open: Experience}
}

// Toggle 已展开则折叠（全部关闭），否则展开 s 并关闭其他分区。未知分区不改变状态。
func (a Accordion) Toggle(s Section) Accordion {
	if !s.Valid() {
		return a
	}
	if a.open == s {
		return Accordion{}
	}
	return Accordion{open: s}
}

func (a Accordion) IsOpen(s Section) bool {
	return s.Valid() && a.open == s
}

// Open 返回当前展开的分区。
func (a Accordion) Open() (Section, bool) {
	return a.open, a.open.Valid()
}

// Expanded 返回每个分区的展开状态。
func (a Accordion) Expanded() map[Section]bool {
	out := make(map[Section]bool, len(Sections))
	for _, s := range Sections {
		out[s] = a.open == s
	}
	return out
}

type accordionJSON struct {
	Open Section `json:"open"`
}

func (a Accordion) MarshalJSON() ([]byte, error) {
	return json.Marshal(accordionJSON{Open: a.open})
}

func (a *Accordion) UnmarshalJSON(data []byte) error {
	var raw accordionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*a = Accordion{open: raw.Open}
	return nil
}
