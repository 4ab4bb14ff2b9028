package resume

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

type sequence struct{ n int }

func (s *sequence) NewID() ItemID {
	s.n++
	return ItemID(fmt.Sprintf("id-%d", s.n))
}

func TestAppendRemoveExperiencePreservesOrderAndIDs(t *testing.T) {
	gen := &sequence{}
	doc := New(1)

	doc, first := doc.AppendExperience(gen)
	doc, second := doc.AppendExperience(gen)
	doc, third := doc.AppendExperience(gen)

	doc = doc.RemoveExperience(second)

	if len(doc.Experiences) != 2 {
		t.Fatalf("expected 2 experiences, got %d", len(doc.Experiences))
	}
	if doc.Experiences[0].ID != first || doc.Experiences[1].ID != third {
		t.Fatalf("unexpected order: %+v", doc.Experiences)
	}
}

func TestRemoveMissingIDIsNoop(t *testing.T) {
	doc, _ := New(1).AppendSkill(nil)
	doc, _ = doc.AppendInterest(nil)

	cases := map[string]func(Document) Document{
		"experience": func(d Document) Document { return d.RemoveExperience("missing") },
		"mission":    func(d Document) Document { return d.RemoveMission("missing", "missing") },
		"education":  func(d Document) Document { return d.RemoveEducation("missing") },
		"skill":      func(d Document) Document { return d.RemoveSkill("missing") },
		"language":   func(d Document) Document { return d.RemoveLanguage("missing") },
		"interest":   func(d Document) Document { return d.RemoveInterest("missing") },
	}
	for name, remove := range cases {
		t.Run(name, func(t *testing.T) {
			if got := remove(doc); !reflect.DeepEqual(got, doc) {
				t.Fatalf("document changed: %+v", got)
			}
		})
	}
}

func TestAppendMissionToMissingExperienceIsNoop(t *testing.T) {
	doc, _ := New(1).AppendExperience(nil)
	doc = doc.UpdateExperience(doc.Experiences[0].ID, ExperienceJobTitle, "Engineer")

	got, id, ok := doc.AppendMission("gone", nil)
	if ok || id != "" {
		t.Fatalf("expected no-op, got id=%q ok=%v", id, ok)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Fatalf("document changed")
	}
}

func TestOperationsDoNotMutateReceiver(t *testing.T) {
	base, expID := New(1).AppendExperience(nil)
	base, missionID, _ := base.AppendMission(expID, nil)
	snapshot, err := base.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	_ = base.UpdateMission(expID, missionID, MissionDescription, "Shipped v2")
	_ = base.UpdateExperience(expID, ExperienceEmployer, "ACME")
	_ = base.RemoveMission(expID, missionID)
	_ = base.SetPersonal(PersonalName, "Ada")

	after, err := base.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(after) != string(snapshot) {
		t.Fatalf("receiver mutated:\n%s\n%s", snapshot, after)
	}
}

func TestRemoveExperienceDropsItsMissions(t *testing.T) {
	doc, expID := New(1).AppendExperience(nil)
	doc, _, _ = doc.AppendMission(expID, nil)
	doc, _, _ = doc.AppendMission(expID, nil)

	doc = doc.RemoveExperience(expID)
	if len(doc.Experiences) != 0 {
		t.Fatalf("expected no experiences")
	}
	if doc2, _, ok := doc.AppendMission(expID, nil); ok || len(doc2.Experiences) != 0 {
		t.Fatalf("mission appended to deleted experience")
	}
}

func TestRandomAppendRemoveKeepsIDsUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	// a generator that collides often
	colliding := IDGeneratorFunc(func() ItemID {
		return ItemID(fmt.Sprintf("c-%d", rng.Intn(4)))
	})

	doc := New(1)
	for i := 0; i < 500; i++ {
		switch rng.Intn(6) {
		case 0:
			doc, _ = doc.AppendExperience(colliding)
		case 1:
			if n := len(doc.Experiences); n > 0 {
				doc = doc.RemoveExperience(doc.Experiences[rng.Intn(n)].ID)
			}
		case 2:
			if n := len(doc.Experiences); n > 0 {
				doc, _, _ = doc.AppendMission(doc.Experiences[rng.Intn(n)].ID, colliding)
			}
		case 3:
			doc, _ = doc.AppendSkill(colliding)
		case 4:
			if n := len(doc.Skills); n > 0 {
				doc = doc.RemoveSkill(doc.Skills[rng.Intn(n)].ID)
			}
		case 5:
			doc, _ = doc.AppendLanguage(colliding)
		}
		if err := doc.Validate(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestLevelsRejectUnknownValues(t *testing.T) {
	doc, id := New(1).AppendSkill(nil)
	doc = doc.SetSkillLevel(id, SkillExpert)
	doc = doc.SetSkillLevel(id, SkillLevel("Wizard"))
	if doc.Skills[0].Level != SkillExpert {
		t.Fatalf("level = %q", doc.Skills[0].Level)
	}

	doc, lid := doc.AppendLanguage(nil)
	doc = doc.SetLanguageLevel(lid, LanguageNative)
	if doc.Languages[0].Level != LanguageNative {
		t.Fatalf("language level = %q", doc.Languages[0].Level)
	}
}

func TestZeroFieldSelectorIsNoop(t *testing.T) {
	doc, id := New(1).AppendEducation(nil)
	if got := doc.UpdateEducation(id, EducationField{}, "x"); !reflect.DeepEqual(got, doc) {
		t.Fatalf("zero selector modified document")
	}
	if got := doc.SetPersonal(PersonalField{}, "x"); !reflect.DeepEqual(got, doc) {
		t.Fatalf("zero personal selector modified document")
	}
}

func TestHydrateToleratesMissingFields(t *testing.T) {
	raw := []byte(`{
		"title": "My CV",
		"owner": 99,
		"experiences": [
			{"id": "a", "job_title": "Dev"},
			{"id": "a", "job_title": "Lead", "missions": null},
			{"job_title": "Intern", "missions": [{"description": "x"}, {"description": "y"}]}
		],
		"skills": [{"id": "s1", "name": "Go", "level": "Wizard"}],
		"personal_info": {"photo": 12}
	}`)

	doc, err := Hydrate(raw, 7, &sequence{})
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if doc.Owner != 7 {
		t.Fatalf("owner taken from payload: %d", doc.Owner)
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if doc.Experiences[0].ID != "a" {
		t.Fatalf("first occurrence must keep its id, got %q", doc.Experiences[0].ID)
	}
	if doc.Experiences[1].Missions == nil || doc.Educations == nil || doc.Interests == nil {
		t.Fatalf("nil collections not defaulted")
	}
	if doc.Skills[0].Level != "" {
		t.Fatalf("unknown level kept: %q", doc.Skills[0].Level)
	}
	if !doc.PersonalInfo.Photo.IsEmpty() {
		t.Fatalf("non-string photo should decode as empty")
	}
}

func TestHydrateEmptyPayload(t *testing.T) {
	for _, raw := range []string{"", "null", "  "} {
		doc, err := Hydrate([]byte(raw), 3, nil)
		if err != nil {
			t.Fatalf("hydrate %q: %v", raw, err)
		}
		if !reflect.DeepEqual(doc, New(3)) {
			t.Fatalf("expected empty document for %q", raw)
		}
	}
	if _, err := Hydrate([]byte("{"), 3, nil); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPhotoStatesAreExclusive(t *testing.T) {
	doc := New(1).SetPhoto(PendingPhoto([]byte{1, 2, 3}))
	if !doc.PersonalInfo.Photo.IsPending() || doc.PersonalInfo.Photo.Ref() != "" {
		t.Fatalf("expected pending photo")
	}

	data, err := doc.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"photo":""`) {
		t.Fatalf("pending bytes must not be serialised: %s", data)
	}

	doc = doc.SetPhoto(PhotoRef("user-assets/1/x.png"))
	if doc.PersonalInfo.Photo.IsPending() || doc.PersonalInfo.Photo.Ref() != "user-assets/1/x.png" {
		t.Fatalf("expected stored reference only")
	}
}

func TestValidateReportsDuplicates(t *testing.T) {
	doc := New(1)
	doc.Interests = []Interest{{ID: "x"}, {ID: "x"}}
	if err := doc.Validate(); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}
