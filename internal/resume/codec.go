package resume

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateID 表示某个列表中出现了重复的元素标识。
var ErrDuplicateID = errors.New("duplicate item id")

// Hydrate 从持久化的 JSON 还原简历。缺失的可选字段取零值，nil 集合变为空集合，
// 枚举外的熟练度置空，缺失或重复的元素标识会被重新分配（首次出现者保留原标识）。
// owner 始终来自认证上下文，忽略载荷中的 owner。
func Hydrate(raw []byte, owner UserID, gen IDGenerator) (Document, error) {
	doc := New(owner)
	if len(strings.TrimSpace(string(raw))) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return doc, nil
	}

	var decoded Document
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Document{}, fmt.Errorf("decode resume document: %w", err)
	}
	decoded.Owner = owner
	return normalize(decoded, gen), nil
}

// Encode 序列化用于持久化；待上传的照片二进制不会写入。
func (d Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d.clone())
	if err != nil {
		return nil, fmt.Errorf("encode resume document: %w", err)
	}
	return data, nil
}

func normalize(d Document, gen IDGenerator) Document {
	if d.Experiences == nil {
		d.Experiences = []Experience{}
	}
	if d.Educations == nil {
		d.Educations = []Education{}
	}
	if d.Skills == nil {
		d.Skills = []Skill{}
	}
	if d.Languages == nil {
		d.Languages = []Language{}
	}
	if d.Interests == nil {
		d.Interests = []Interest{}
	}
	if d.PersonalInfo.Children < 0 {
		d.PersonalInfo.Children = 0
	}
	d.TemplateID = TemplateID(strings.TrimSpace(string(d.TemplateID)))

	seen := map[ItemID]struct{}{}
	for i := range d.Experiences {
		exp := &d.Experiences[i]
		exp.ID = reassign(exp.ID, seen, gen)
		if exp.Missions == nil {
			exp.Missions = []Mission{}
		}
		missions := map[ItemID]struct{}{}
		for j := range exp.Missions {
			exp.Missions[j].ID = reassign(exp.Missions[j].ID, missions, gen)
		}
	}

	seen = map[ItemID]struct{}{}
	for i := range d.Educations {
		d.Educations[i].ID = reassign(d.Educations[i].ID, seen, gen)
	}
	seen = map[ItemID]struct{}{}
	for i := range d.Skills {
		d.Skills[i].ID = reassign(d.Skills[i].ID, seen, gen)
		if !d.Skills[i].Level.Valid() {
			d.Skills[i].Level = ""
		}
	}
	seen = map[ItemID]struct{}{}
	for i := range d.Languages {
		d.Languages[i].ID = reassign(d.Languages[i].ID, seen, gen)
		if !d.Languages[i].Level.Valid() {
			d.Languages[i].Level = ""
		}
	}
	seen = map[ItemID]struct{}{}
	for i := range d.Interests {
		d.Interests[i].ID = reassign(d.Interests[i].ID, seen, gen)
	}
	return d
}

func reassign(id ItemID, seen map[ItemID]struct{}, gen IDGenerator) ItemID {
	id = ItemID(strings.TrimSpace(string(id)))
	if _, dup := seen[id]; id == "" || dup {
		id = freshID(gen, func(candidate ItemID) bool {
			_, taken := seen[candidate]
			return taken
		})
	}
	seen[id] = struct{}{}
	return id
}

// Validate 检查每个列表内的标识唯一性。
func (d Document) Validate() error {
	if err := uniqueIDs("experiences", d.Experiences, experienceID); err != nil {
		return err
	}
	for _, exp := range d.Experiences {
		if err := uniqueIDs("missions of "+string(exp.ID), exp.Missions, missionID); err != nil {
			return err
		}
	}
	if err := uniqueIDs("educations", d.Educations, educationID); err != nil {
		return err
	}
	if err := uniqueIDs("skills", d.Skills, skillID); err != nil {
		return err
	}
	if err := uniqueIDs("languages", d.Languages, languageID); err != nil {
		return err
	}
	return uniqueIDs("interests", d.Interests, interestID)
}

func uniqueIDs[T any](list string, items []T, idOf func(T) ItemID) error {
	seen := make(map[ItemID]struct{}, len(items))
	for _, item := range items {
		id := idOf(item)
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%s: %w: %q", list, ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
