package templates

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvStudio/internal/database"
	"cvStudio/internal/resume"
)

func sampleDocument() resume.Document {
	doc := resume.New(1).
		SetTitle("Backend Engineer").
		SetSummary(`Builds <b>reliable</b> systems<script>alert(1)</script>`).
		SetPersonal(resume.PersonalName, "Ada Lovelace").
		SetPersonal(resume.PersonalEmail, "ada@example.com")
	doc, expID := doc.AppendExperience(nil)
	doc = doc.UpdateExperience(expID, resume.ExperienceJobTitle, "Engineer")
	doc = doc.UpdateExperience(expID, resume.ExperienceStartDate, "2020-01")
	doc, missionID, _ := doc.AppendMission(expID, nil)
	doc = doc.UpdateMission(expID, missionID, resume.MissionDescription, "Shipped <em>v2</em>")
	doc, skillID := doc.AppendSkill(nil)
	doc = doc.UpdateSkill(skillID, resume.SkillName, "Go")
	doc = doc.SetSkillLevel(skillID, resume.SkillExpert)
	return doc
}

func parse(t *testing.T, html []byte) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return d
}

func TestRegisteredTemplatesRenderPreviewRoot(t *testing.T) {
	reg := MustRegistry()
	for _, key := range reg.Keys() {
		t.Run(key, func(t *testing.T) {
			r, ok := reg.Resolve(key)
			if !ok {
				t.Fatalf("resolve %s failed", key)
			}
			out, err := r.Render(sampleDocument(), RenderOptions{IncludeColors: true})
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			d := parse(t, out.HTML)
			root := d.Find("#" + PreviewRootID)
			if root.Length() != 1 {
				t.Fatalf("expected one preview root, got %d", root.Length())
			}
			if !strings.Contains(root.Text(), "Ada Lovelace") {
				t.Fatalf("name missing from preview")
			}
			if d.Find("script").Length() != 0 {
				t.Fatalf("summary markup not sanitised")
			}
			if d.Find(".cv-summary b").Length() != 1 || d.Find(".cv-missions em").Length() != 1 {
				t.Fatalf("inline markup should survive sanitising")
			}
			if out.Placeholder {
				t.Fatalf("real template flagged as placeholder")
			}
		})
	}
}

func TestResolveUnknownKeyNotFound(t *testing.T) {
	reg := MustRegistry()
	for _, key := range []string{"", "unknown", "CLASSIC", "../classic", "classic.png"} {
		if r, ok := reg.Resolve(key); ok || r != nil {
			t.Fatalf("key %q unexpectedly resolved", key)
		}
	}
	var nilReg *Registry
	if _, ok := nilReg.Resolve("classic"); ok {
		t.Fatalf("nil registry resolved")
	}
}

func TestPlaceholderHasNoPreviewRoot(t *testing.T) {
	reg := MustRegistry()
	out, err := reg.ResolveOrPlaceholder("missing").Render(resume.New(1), RenderOptions{})
	if err != nil {
		t.Fatalf("render placeholder: %v", err)
	}
	if !out.Placeholder {
		t.Fatalf("expected placeholder result")
	}
	d := parse(t, out.HTML)
	if d.Find("#"+PreviewRootID).Length() != 0 {
		t.Fatalf("placeholder must not contain preview root")
	}
	if d.Find("#"+PlaceholderID).Length() != 1 {
		t.Fatalf("placeholder root missing")
	}
}

func TestPreviewOnlyRendersNothing(t *testing.T) {
	reg := MustRegistry()
	for _, key := range append(reg.Keys(), "missing") {
		out, err := reg.ResolveOrPlaceholder(key).Render(sampleDocument(), RenderOptions{PreviewOnly: true})
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		if !out.Empty() {
			t.Fatalf("%s: expected empty output", key)
		}
	}
}

func TestExportModeAddsExportClass(t *testing.T) {
	r, _ := MustRegistry().Resolve("classic")
	out, err := r.Render(sampleDocument(), RenderOptions{ExportMode: true})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	d := parse(t, out.HTML)
	if !d.Find("body").HasClass("export") {
		t.Fatalf("export class missing")
	}
	if !strings.Contains(d.Find("style").Text(), "break-inside: avoid") {
		t.Fatalf("break hint missing")
	}
}

var hexColor = regexp.MustCompile(`#([0-9a-f]{2})([0-9a-f]{2})([0-9a-f]{2})\b`)

func TestGrayPaletteHasNoColor(t *testing.T) {
	reg := MustRegistry()
	for _, key := range reg.Keys() {
		r, _ := reg.Resolve(key)
		out, err := r.Render(sampleDocument(), RenderOptions{IncludeColors: false})
		if err != nil {
			t.Fatalf("render %s: %v", key, err)
		}
		for _, m := range hexColor.FindAllStringSubmatch(string(out.HTML), -1) {
			if m[1] != m[2] || m[2] != m[3] {
				t.Fatalf("%s: colour %s survived gray palette", key, m[0])
			}
		}
	}
}

func TestPalettesDeclareGrayFallbacks(t *testing.T) {
	for _, b := range builtins {
		for i, sw := range b.palette.Swatches() {
			m := hexColor.FindStringSubmatch(sw.Gray)
			if sw.Color == "" || m == nil || m[1] != m[2] || m[2] != m[3] {
				t.Fatalf("%s swatch %d has no gray fallback: %+v", b.key, i, sw)
			}
		}
	}
}

func TestPhotoURLFiltering(t *testing.T) {
	r, _ := MustRegistry().Resolve("modern")
	cases := map[string]int{
		"data:image/png;base64,AAAA":    1,
		"https://cdn.example.com/a.png": 1,
		"javascript:alert(1)":           0,
		"":                              0,
	}
	for url, want := range cases {
		out, err := r.Render(sampleDocument(), RenderOptions{PhotoURL: url})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if got := parse(t, out.HTML).Find("img.cv-photo").Length(); got != want {
			t.Fatalf("photo %q: got %d images, want %d", url, got, want)
		}
	}
}

func TestDateRangeToleratesEmptyEnd(t *testing.T) {
	cases := []struct {
		start, end string
		ongoing    bool
		want       string
	}{
		{"2020", "", true, "2020 – Present"},
		{"2020", "", false, "2020"},
		{"", "2021", true, "2021"},
		{"", "", true, ""},
		{"2020", "2021", false, "2020 – 2021"},
	}
	for _, c := range cases {
		if got := dateRange(c.start, c.end, c.ongoing); got != c.want {
			t.Fatalf("dateRange(%q,%q) = %q, want %q", c.start, c.end, got, c.want)
		}
	}
}

func TestCatalogEntryKey(t *testing.T) {
	cases := map[string]string{
		"modern.png":           "modern",
		"previews/classic.jpg": "classic",
		"compact":              "compact",
		"archive.tar.gz":       "archive.tar",
		"":                     "",
	}
	for in, want := range cases {
		if got := (CatalogEntry{PreviewImageKey: in}).Key(); got != want {
			t.Fatalf("Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestResolverFallsBackToPlaceholder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	if n, err := Seed(ctx, db); err != nil || n != len(builtins) {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}
	if n, err := Seed(ctx, db); err != nil || n != 0 {
		t.Fatalf("second seed should be a no-op: n=%d err=%v", n, err)
	}
	legacy := database.Template{Label: "Legacy", PreviewImageKey: "legacy.png", Position: 9}
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("create legacy: %v", err)
	}

	resolver := NewResolver(MustRegistry(), NewDBCatalog(db))

	listing, err := resolver.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listing) != 4 || listing[0].Key != "classic" || listing[3].Available {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	found, err := resolver.ForTemplate(ctx, listing[1].ID)
	if err != nil || !found.Found || found.Key != "modern" {
		t.Fatalf("expected modern, got %+v err=%v", found, err)
	}

	for _, id := range []resume.TemplateID{"", "999", "not-a-number", listing[3].ID} {
		res, err := resolver.ForTemplate(ctx, id)
		if err != nil {
			t.Fatalf("%q: %v", id, err)
		}
		if res.Found {
			t.Fatalf("%q should fall back", id)
		}
		out, err := res.Renderer.Render(resume.New(1), RenderOptions{})
		if err != nil || !out.Placeholder {
			t.Fatalf("%q: expected placeholder render, err=%v", id, err)
		}
	}
}
