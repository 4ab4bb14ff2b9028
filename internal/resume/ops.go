package resume

func indexOf[T any](items []T, id ItemID, idOf func(T) ItemID) int {
	for i, item := range items {
		if idOf(item) == id {
			return i
		}
	}
	return -1
}

func containsID[T any](items []T, idOf func(T) ItemID) func(ItemID) bool {
	return func(id ItemID) bool { return indexOf(items, id, idOf) >= 0 }
}

// removeByID 删除第一个匹配的元素并保持其余元素的相对顺序。
func removeByID[T any](items []T, id ItemID, idOf func(T) ItemID) ([]T, bool) {
	idx := indexOf(items, id, idOf)
	if idx < 0 {
		return items, false
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...), true
}

func experienceID(e Experience) ItemID { return e.ID }
func missionID(m Mission) ItemID       { return m.ID }
func educationID(e Education) ItemID   { return e.ID }
func skillID(s Skill) ItemID           { return s.ID }
func languageID(l Language) ItemID     { return l.ID }
func interestID(i Interest) ItemID     { return i.ID }

func (d Document) SetTitle(title string) Document {
	out := d.clone()
	out.Title = title
	return out
}

func (d Document) SetSummary(summary string) Document {
	out := d.clone()
	out.Summary = summary
	return out
}

// SetTemplate 切换模板。是否为已注册模板由 templates.Resolver 判定，未知值渲染占位页。
func (d Document) SetTemplate(id TemplateID) Document {
	out := d.clone()
	out.TemplateID = id
	return out
}

func (d Document) SetPersonal(field PersonalField, value string) Document {
	if field.set == nil {
		return d
	}
	out := d.clone()
	field.set(&out.PersonalInfo, value)
	return out
}

func (d Document) SetChildren(n int) Document {
	if n < 0 {
		n = 0
	}
	out := d.clone()
	out.PersonalInfo.Children = n
	return out
}

func (d Document) SetPhoto(p Photo) Document {
	out := d.clone()
	out.PersonalInfo.Photo = p.clone()
	return out
}

// AppendExperience 在末尾追加一段空经历，返回新文档与新元素的标识。
func (d Document) AppendExperience(gen IDGenerator) (Document, ItemID) {
	out := d.clone()
	id := freshID(gen, containsID(out.Experiences, experienceID))
	out.Experiences = append(out.Experiences, Experience{ID: id, Missions: []Mission{}})
	return out, id
}

func (d Document) RemoveExperience(id ItemID) Document {
	if indexOf(d.Experiences, id, experienceID) < 0 {
		return d
	}
	out := d.clone()
	out.Experiences, _ = removeByID(out.Experiences, id, experienceID)
	return out
}

func (d Document) UpdateExperience(id ItemID, field ExperienceField, value string) Document {
	idx := indexOf(d.Experiences, id, experienceID)
	if idx < 0 || field.set == nil {
		return d
	}
	out := d.clone()
	field.set(&out.Experiences[idx], value)
	return out
}

// AppendMission 给指定经历追加一条空职责。经历不存在时原样返回，界面状态可能与删除操作竞争。
func (d Document) AppendMission(experience ItemID, gen IDGenerator) (Document, ItemID, bool) {
	idx := indexOf(d.Experiences, experience, experienceID)
	if idx < 0 {
		return d, "", false
	}
	out := d.clone()
	exp := &out.Experiences[idx]
	id := freshID(gen, containsID(exp.Missions, missionID))
	exp.Missions = append(exp.Missions, Mission{ID: id})
	return out, id, true
}

func (d Document) RemoveMission(experience, mission ItemID) Document {
	idx := indexOf(d.Experiences, experience, experienceID)
	if idx < 0 {
		return d
	}
	if indexOf(d.Experiences[idx].Missions, mission, missionID) < 0 {
		return d
	}
	out := d.clone()
	out.Experiences[idx].Missions, _ = removeByID(out.Experiences[idx].Missions, mission, missionID)
	return out
}

func (d Document) UpdateMission(experience, mission ItemID, field MissionField, value string) Document {
	idx := indexOf(d.Experiences, experience, experienceID)
	if idx < 0 || field.set == nil {
		return d
	}
	midx := indexOf(d.Experiences[idx].Missions, mission, missionID)
	if midx < 0 {
		return d
	}
	out := d.clone()
	field.set(&out.Experiences[idx].Missions[midx], value)
	return out
}

func (d Document) AppendEducation(gen IDGenerator) (Document, ItemID) {
	out := d.clone()
	id := freshID(gen, containsID(out.Educations, educationID))
	out.Educations = append(out.Educations, Education{ID: id})
	return out, id
}

func (d Document) RemoveEducation(id ItemID) Document {
	if indexOf(d.Educations, id, educationID) < 0 {
		return d
	}
	out := d.clone()
	out.Educations, _ = removeByID(out.Educations, id, educationID)
	return out
}

func (d Document) UpdateEducation(id ItemID, field EducationField, value string) Document {
	idx := indexOf(d.Educations, id, educationID)
	if idx < 0 || field.set == nil {
		return d
	}
	out := d.clone()
	field.set(&out.Educations[idx], value)
	return out
}

func (d Document) AppendSkill(gen IDGenerator) (Document, ItemID) {
	out := d.clone()
	id := freshID(gen, containsID(out.Skills, skillID))
	out.Skills = append(out.Skills, Skill{ID: id})
	return out, id
}

func (d Document) RemoveSkill(id ItemID) Document {
	if indexOf(d.Skills, id, skillID) < 0 {
		return d
	}
	out := d.clone()
	out.Skills, _ = removeByID(out.Skills, id, skillID)
	return out
}

func (d Document) UpdateSkill(id ItemID, field SkillField, value string) Document {
	idx := indexOf(d.Skills, id, skillID)
	if idx < 0 || field.set == nil {
		return d
	}
	out := d.clone()
	field.set(&out.Skills[idx], value)
	return out
}

// SetSkillLevel 只接受枚举内的熟练度，其他值被忽略。
func (d Document) SetSkillLevel(id ItemID, level SkillLevel) Document {
	idx := indexOf(d.Skills, id, skillID)
	if idx < 0 || !level.Valid() {
		return d
	}
	out := d.clone()
	out.Skills[idx].Level = level
	return out
}

func (d Document) AppendLanguage(gen IDGenerator) (Document, ItemID) {
	out := d.clone()
	id := freshID(gen, containsID(out.Languages, languageID))
	out.Languages = append(out.Languages, Language{ID: id})
	return out, id
}

func (d Document) RemoveLanguage(id ItemID) Document {
	if indexOf(d.Languages, id, languageID) < 0 {
		return d
	}
	out := d.clone()
	out.Languages, _ = removeByID(out.Languages, id, languageID)
	return out
}

func (d Document) UpdateLanguage(id ItemID, field LanguageField, value string) Document {
	idx := indexOf(d.Languages, id, languageID)
	if idx < 0 || field.set == nil {
		return d
	}
	out := d.clone()
	field.set(&out.Languages[idx], value)
	return out
}

func (d Document) SetLanguageLevel(id ItemID, level LanguageLevel) Document {
	idx := indexOf(d.Languages, id, languageID)
	if idx < 0 || !level.Valid() {
		return d
	}
	out := d.clone()
	out.Languages[idx].Level = level
	return out
}

func (d Document) AppendInterest(gen IDGenerator) (Document, ItemID) {
	out := d.clone()
	id := freshID(gen, containsID(out.Interests, interestID))
	out.Interests = append(out.Interests, Interest{ID: id})
	return out, id
}

func (d Document) RemoveInterest(id ItemID) Document {
	if indexOf(d.Interests, id, interestID) < 0 {
		return d
	}
	out := d.clone()
	out.Interests, _ = removeByID(out.Interests, id, interestID)
	return out
}

func (d Document) UpdateInterest(id ItemID, field InterestField, value string) Document {
	idx := indexOf(d.Interests, id, interestID)
	if idx < 0 || field.set == nil {
		return d
	}
	out := d.clone()
	field.set(&out.Interests[idx], value)
	return out
}
