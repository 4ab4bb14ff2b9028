package resume

// TemplateID 标识一个模板目录条目；空字符串表示尚未选择模板。
type TemplateID string

// UserID 标识简历的所有者，由认证协作方签发。
type UserID uint

// ItemID 是列表元素在其父列表内的稳定标识，创建时分配且永不复用。
type ItemID string

// Document 是简历聚合根。所有修改操作均返回新的值，不修改接收者。
type Document struct {
	Title        string       `json:"title"`
	Summary      string       `json:"summary"`
	TemplateID   TemplateID   `json:"template_id"`
	Owner        UserID       `json:"owner"`
	PersonalInfo PersonalInfo `json:"personal_info"`
	Experiences  []Experience `json:"experiences"`
	Educations   []Education  `json:"educations"`
	Skills       []Skill      `json:"skills"`
	Languages    []Language   `json:"languages"`
	Interests    []Interest   `json:"interests"`
}

// PersonalInfo 是个人资料值对象。
type PersonalInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	BirthDate     string `json:"birth_date"`
	MaritalStatus string `json:"marital_status"`
	Children      int    `json:"children"`
	Nationality   string `json:"nationality"`
	DriverLicense string `json:"driver_license"`
	LinkedIn      string `json:"linkedin"`
	Photo         Photo  `json:"photo"`
}

// Experience 表示一段工作经历；Missions 只属于该经历。
type Experience struct {
	ID        ItemID    `json:"id"`
	JobTitle  string    `json:"job_title"`
	Employer  string    `json:"employer"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"` // 为空表示至今
	Missions  []Mission `json:"missions"`
}

// Mission 是挂在某段经历下的一条职责/成果。
type Mission struct {
	ID          ItemID `json:"id"`
	Description string `json:"description"`
}

type Education struct {
	ID          ItemID `json:"id"`
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type Skill struct {
	ID    ItemID     `json:"id"`
	Name  string     `json:"name"`
	Level SkillLevel `json:"level"`
}

type Language struct {
	ID    ItemID        `json:"id"`
	Name  string        `json:"name"`
	Level LanguageLevel `json:"level"`
}

type Interest struct {
	ID    ItemID `json:"id"`
	Label string `json:"label"`
}

// SkillLevel 是技能熟练度。
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "Beginner"
	SkillIntermediate SkillLevel = "Intermediate"
	SkillAdvanced     SkillLevel = "Advanced"
	SkillExpert       SkillLevel = "Expert"
)

// Valid 判断熟练度是否属于固定枚举。
func (l SkillLevel) Valid() bool {
	switch l {
	case SkillBeginner, SkillIntermediate, SkillAdvanced, SkillExpert:
		return true
	}
	return false
}

// LanguageLevel 是语言熟练度，比技能多出 Fluent/Native。
type LanguageLevel string

const (
	LanguageBeginner     LanguageLevel = "Beginner"
	LanguageIntermediate LanguageLevel = "Intermediate"
	LanguageAdvanced     LanguageLevel = "Advanced"
	LanguageFluent       LanguageLevel = "Fluent"
	LanguageNative       LanguageLevel = "Native"
)

func (l LanguageLevel) Valid() bool {
	switch l {
	case LanguageBeginner, LanguageIntermediate, LanguageAdvanced, LanguageFluent, LanguageNative:
		return true
	}
	return false
}

// New 创建一份空简历：所有集合为空，未选择模板。
func New(owner UserID) Document {
	return Document{
		Owner:       owner,
		Experiences: []Experience{},
		Educations:  []Education{},
		Skills:      []Skill{},
		Languages:   []Language{},
		Interests:   []Interest{},
	}
}

// clone 深拷贝所有切片，保证返回值与接收者不共享底层数组。
func (d Document) clone() Document {
	out := d
	out.Experiences = make([]Experience, len(d.Experiences))
	for i, e := range d.Experiences {
		e.Missions = append([]Mission{}, e.Missions...)
		out.Experiences[i] = e
	}
	out.Educations = append([]Education{}, d.Educations...)
	out.Skills = append([]Skill{}, d.Skills...)
	out.Languages = append([]Language{}, d.Languages...)
	out.Interests = append([]Interest{}, d.Interests...)
	out.PersonalInfo.Photo = d.PersonalInfo.Photo.clone()
	return out
}
