package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"cvStudio/internal/resume"
)

//go:embed assets/*.html
var assets embed.FS

// richText 只保留基础的行内格式，用于自由文本（简介、职责描述）。
var richText = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "br")
	return p
}()

func rich(s string) template.HTML {
	return template.HTML(richText.Sanitize(s))
}

// htmlRenderer 用一份 layout + sections + 模板主体渲染完整 HTML 文档。
type htmlRenderer struct {
	key     string
	palette Palette
	tmpl    *template.Template
}

func newHTMLRenderer(key string, palette Palette) (*htmlRenderer, error) {
	tmpl, err := template.New(key).ParseFS(assets,
		"assets/layout.html", "assets/sections.html", "assets/"+key+".html")
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", key, err)
	}
	return &htmlRenderer{key: key, palette: palette, tmpl: tmpl}, nil
}

func (r *htmlRenderer) Render(doc resume.Document, opts RenderOptions) (Rendered, error) {
	if opts.PreviewOnly {
		return Rendered{Key: r.key}, nil
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "layout", buildView(r.key, doc, opts, r.palette)); err != nil {
		return Rendered{}, fmt.Errorf("render template %s: %w", r.key, err)
	}
	return Rendered{Key: r.key, HTML: buf.Bytes()}, nil
}

type placeholderRenderer struct {
	tmpl *template.Template
}

const placeholderMessage = "Select a template to preview your CV."

func newPlaceholderRenderer() (*placeholderRenderer, error) {
	tmpl, err := template.ParseFS(assets, "assets/placeholder.html")
	if err != nil {
		return nil, fmt.Errorf("parse placeholder: %w", err)
	}
	return &placeholderRenderer{tmpl: tmpl}, nil
}

func (r *placeholderRenderer) Render(doc resume.Document, opts RenderOptions) (Rendered, error) {
	if opts.PreviewOnly {
		return Rendered{Placeholder: true}, nil
	}
	var buf bytes.Buffer
	data := map[string]string{"Title": doc.Title, "Message": placeholderMessage}
	if err := r.tmpl.ExecuteTemplate(&buf, "placeholder", data); err != nil {
		return Rendered{}, fmt.Errorf("render placeholder: %w", err)
	}
	return Rendered{HTML: buf.Bytes(), Placeholder: true}, nil
}

// view 是模板看到的数据，所有字段都已格式化并完成转义决策。
type view struct {
	Key         string
	ExportMode  bool
	Colors      Colors
	Title       string
	Name        string
	PhotoURL    template.URL
	Contacts    []contact
	Summary     template.HTML
	Experiences []experienceView
	Educations  []educationView
	Skills      []levelView
	Languages   []levelView
	Interests   []resume.Interest
}

type contact struct {
	Label string
	Value string
}

type experienceView struct {
	ID       resume.ItemID
	JobTitle string
	Employer string
	Period   string
	Missions []template.HTML
}

type educationView struct {
	ID          resume.ItemID
	Degree      string
	Institution string
	Period      string
}

type levelView struct {
	ID      resume.ItemID
	Name    string
	Level   string
	Percent int
}

func buildView(key string, doc resume.Document, opts RenderOptions, palette Palette) view {
	p := doc.PersonalInfo
	v := view{
		Key:        key,
		ExportMode: opts.ExportMode,
		Colors:     palette.resolve(opts.IncludeColors),
		Title:      doc.Title,
		Name:       p.Name,
		PhotoURL:   safePhotoURL(opts.PhotoURL),
		Summary:    rich(doc.Summary),
	}

	for _, c := range []contact{
		{"Email", p.Email},
		{"Phone", p.Phone},
		{"Address", p.Address},
		{"LinkedIn", p.LinkedIn},
		{"Date of birth", p.BirthDate},
		{"Nationality", p.Nationality},
		{"Marital status", p.MaritalStatus},
		{"Driving licence", p.DriverLicense},
	} {
		if strings.TrimSpace(c.Value) != "" {
			v.Contacts = append(v.Contacts, c)
		}
	}
	if p.Children > 0 {
		v.Contacts = append(v.Contacts, contact{"Children", fmt.Sprint(p.Children)})
	}

	for _, e := range doc.Experiences {
		ev := experienceView{
			ID:       e.ID,
			JobTitle: e.JobTitle,
			Employer: e.Employer,
			Period:   dateRange(e.StartDate, e.EndDate, true),
		}
		for _, m := range e.Missions {
			if strings.TrimSpace(m.Description) == "" {
				continue
			}
			ev.Missions = append(ev.Missions, rich(m.Description))
		}
		v.Experiences = append(v.Experiences, ev)
	}
	for _, e := range doc.Educations {
		v.Educations = append(v.Educations, educationView{
			ID:          e.ID,
			Degree:      e.Degree,
			Institution: e.Institution,
			Period:      dateRange(e.StartDate, e.EndDate, false),
		})
	}
	for _, s := range doc.Skills {
		v.Skills = append(v.Skills, levelView{ID: s.ID, Name: s.Name, Level: string(s.Level), Percent: skillPercent(s.Level)})
	}
	for _, l := range doc.Languages {
		v.Languages = append(v.Languages, levelView{ID: l.ID, Name: l.Name, Level: string(l.Level), Percent: languagePercent(l.Level)})
	}
	v.Interests = doc.Interests
	return v
}

// dateRange 格式化起止时间；ongoing 为 true 时缺失的结束时间显示为 Present。
func dateRange(start, end string, ongoing bool) string {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	switch {
	case start == "" && end == "":
		return ""
	case start == "":
		return end
	case end == "" && ongoing:
		return start + " – Present"
	case end == "":
		return start
	}
	return start + " – " + end
}

func skillPercent(l resume.SkillLevel) int {
	switch l {
	case resume.SkillBeginner:
		return 25
	case resume.SkillIntermediate:
		return 50
	case resume.SkillAdvanced:
		return 75
	case resume.SkillExpert:
		return 100
	}
	return 0
}

func languagePercent(l resume.LanguageLevel) int {
	switch l {
	case resume.LanguageBeginner:
		return 20
	case resume.LanguageIntermediate:
		return 40
	case resume.LanguageAdvanced:
		return 60
	case resume.LanguageFluent:
		return 80
	case resume.LanguageNative:
		return 100
	}
	return 0
}

// safePhotoURL 只放行内联图片和 http(s) 链接。
func safePhotoURL(raw string) template.URL {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "data:image/") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://") {
		return template.URL(raw)
	}
	return ""
}
