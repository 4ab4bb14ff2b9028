package resume

// 字段选择器是封闭集合：选择器类型的字段未导出，包外只能使用下面预定义的值。
// 零值选择器不修改任何字段。

// ExperienceField 选择 Experience 的一个标量字段。
type ExperienceField struct{ set func(*Experience, string) }

var (
	ExperienceJobTitle  = ExperienceField{func(e *Experience, v string) { e.JobTitle = v }}
	ExperienceEmployer  = ExperienceField{func(e *Experience, v string) { e.Employer = v }}
	ExperienceStartDate = ExperienceField{func(e *Experience, v string) { e.StartDate = v }}
	ExperienceEndDate   = ExperienceField{func(e *Experience, v string) { e.EndDate = v }}
)

// MissionField 选择 Mission 的一个标量字段。
type MissionField struct{ set func(*Mission, string) }

var MissionDescription = MissionField{func(m *Mission, v string) { m.Description = v }}

type EducationField struct{ set func(*Education, string) }

var (
	EducationDegree      = EducationField{func(e *Education, v string) { e.Degree = v }}
	EducationInstitution = EducationField{func(e *Education, v string) { e.Institution = v }}
	EducationStartDate   = EducationField{func(e *Education, v string) { e.StartDate = v }}
	EducationEndDate     = EducationField{func(e *Education, v string) { e.EndDate = v }}
)

// SkillField 只覆盖名称；熟练度通过 SetSkillLevel 以枚举类型设置。
type SkillField struct{ set func(*Skill, string) }

var SkillName = SkillField{func(s *Skill, v string) { s.Name = v }}

type LanguageField struct{ set func(*Language, string) }

var LanguageName = LanguageField{func(l *Language, v string) { l.Name = v }}

type InterestField struct{ set func(*Interest, string) }

var InterestLabel = InterestField{func(i *Interest, v string) { i.Label = v }}

// PersonalField 选择 PersonalInfo 的一个字符串字段。
// Children 与 Photo 不是字符串，分别使用 SetChildren、SetPhoto。
type PersonalField struct{ set func(*PersonalInfo, string) }

var (
	PersonalName          = PersonalField{func(p *PersonalInfo, v string) { p.Name = v }}
	PersonalEmail         = PersonalField{func(p *PersonalInfo, v string) { p.Email = v }}
	PersonalPhone         = PersonalField{func(p *PersonalInfo, v string) { p.Phone = v }}
	PersonalAddress       = PersonalField{func(p *PersonalInfo, v string) { p.Address = v }}
	PersonalBirthDate     = PersonalField{func(p *PersonalInfo, v string) { p.BirthDate = v }}
	PersonalMaritalStatus = PersonalField{func(p *PersonalInfo, v string) { p.MaritalStatus = v }}
	PersonalNationality   = PersonalField{func(p *PersonalInfo, v string) { p.Nationality = v }}
	PersonalDriverLicense = PersonalField{func(p *PersonalInfo, v string) { p.DriverLicense = v }}
	PersonalLinkedIn      = PersonalField{func(p *PersonalInfo, v string) { p.LinkedIn = v }}
)
