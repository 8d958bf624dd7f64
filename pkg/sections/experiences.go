package sections

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
	"github.com/gabrielmiguelok/scholarpage/pkg/dom"
	"github.com/gabrielmiguelok/scholarpage/pkg/tabs"
)

// ExperienceTabs are the experiences tabs in display order.
var ExperienceTabs = []tabs.Tab{
	{ID: "education", LabelKey: "education", Type: content.TypeEducation},
	{ID: "employment", LabelKey: "employment", Type: content.TypeEmployment},
	{ID: "honors-awards", LabelKey: "honorsAndAwards", Type: content.TypeHonors},
	{ID: "teaching", LabelKey: "teaching", Type: content.TypeTeaching},
	{ID: "reviewer", LabelKey: "reviewer", Type: content.TypeReviewer},
}

const experienceImageDir = "images/experience/"

// Experiences renders education, employment, honors, teaching and review
// service.
type Experiences struct {
	*tabbed
}

// NewExperiences creates the experiences renderer. states is shared with the
// other tabbed sections of the page.
func NewExperiences(env *Env, states *tabs.ActiveStates, opts ...tabs.Option) *Experiences {
	e := &Experiences{}
	e.tabbed = newTabbed(env, ExperiencesID, ExperiencesName, "experiences", ExperienceTabs, states, e.buildPane, opts...)
	return e
}

func (e *Experiences) buildPane(tab tabs.Tab, lang string, container *html.Node) error {
	store := e.env.Store
	switch tab.Type {
	case content.TypeEducation:
		list, _ := content.Lookup[content.EducationList](store, lang, tab.Type)
		for _, item := range list {
			m, err := e.education(item, lang)
			if err != nil {
				return err
			}
			dom.Append(container, m.Container)
		}
	case content.TypeEmployment:
		list, _ := content.Lookup[content.EmploymentList](store, lang, tab.Type)
		for _, item := range list {
			m, err := e.employment(item, lang)
			if err != nil {
				return err
			}
			dom.Append(container, m.Container)
		}
	case content.TypeHonors:
		list, _ := content.Lookup[content.HonorList](store, lang, tab.Type)
		for _, item := range list {
			dom.Append(container, e.honor(item).Container)
		}
	case content.TypeTeaching:
		list, _ := content.Lookup[content.TeachingList](store, lang, tab.Type)
		for _, item := range list {
			dom.Append(container, e.teaching(item).Container)
		}
	case content.TypeReviewer:
		list, _ := content.Lookup[content.ReviewerList](store, lang, tab.Type)
		label := e.env.text("reviewer", lang)
		for _, g := range GroupReviewers(list) {
			dom.Append(container, e.reviewer(g, label).Container)
		}
	default:
		return fmt.Errorf("%w: %s", content.ErrUnknownType, tab.Type)
	}
	return nil
}

func (e *Experiences) education(item content.Education, lang string) (dom.Module, error) {
	m := dom.NewModule("education", "education-module")
	row, cols, err := dom.Columns(2, []int{1, 2}, []string{"edu-logo-column", "edu-info-column"})
	if err != nil {
		return m, err
	}
	m.Add(dom.Header(item.School, "fas fa-graduation-cap"), row)
	if item.LogoSrc != "" {
		dom.Append(cols[0], dom.Image(experienceImageDir+item.LogoSrc, item.School+" logo", "125px"))
	}

	var b strings.Builder
	for i, d := range item.Details {
		class := "education-degree"
		if i > 0 {
			class += " multiple-degree-spacing"
		}
		fmt.Fprintf(&b, `<div class="%s">`, class)
		fmt.Fprintf(&b, "<p><strong>%s</strong></p>", esc(d.Degree))
		fmt.Fprintf(&b, "<p>%s</p>", esc(joinNonEmpty(", ", d.Major, d.College)))
		fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>", esc(e.env.text("time", lang)), esc(d.Time))
		if d.Tutor != "" {
			fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>", esc(e.env.text("tutor", lang)), esc(d.Tutor))
		}
		if d.Dissertation != "" {
			fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>", esc(e.env.text("dissertation", lang)), esc(d.Dissertation))
		}
		b.WriteString("</div>")
	}
	body, err := e.env.body("education-info", b.String())
	if err != nil {
		return m, err
	}
	dom.Append(cols[1], body)
	return m, nil
}

func (e *Experiences) employment(item content.Employment, lang string) (dom.Module, error) {
	m := dom.NewModule("employment", "employment-module")
	row, cols, err := dom.Columns(2, []int{1, 2}, []string{"emp-logo-column", "emp-info-column"})
	if err != nil {
		return m, err
	}
	m.Add(dom.Header(item.Company, "fas fa-briefcase"), row)
	if item.LogoSrc != "" {
		dom.Append(cols[0], dom.Image(experienceImageDir+item.LogoSrc, item.Company+" logo", "125px"))
	}

	var b strings.Builder
	for i, d := range item.Details {
		class := "employment-position"
		if i > 0 {
			class += " multiple-degree-spacing"
		}
		fmt.Fprintf(&b, `<div class="%s">`, class)
		fmt.Fprintf(&b, "<p><strong>%s</strong></p>", esc(d.Position))
		fmt.Fprintf(&b, "<p>%s</p>", esc(joinNonEmpty(", ", d.Department, item.Company)))
		fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>", esc(e.env.text("time", lang)), esc(d.Time))
		if d.Project != "" {
			fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>", esc(e.env.text("project", lang)), esc(d.Project))
		}
		b.WriteString("</div>")
	}
	body, err := e.env.body("employment-info", b.String())
	if err != nil {
		return m, err
	}
	dom.Append(cols[1], body)
	return m, nil
}

func (e *Experiences) honor(item content.Honor) dom.Module {
	m := dom.NewModule("honor", "honor-module")
	row, cols, _ := dom.Columns(1, nil, []string{"honor-info-column"})
	m.Add(dom.Header(item.Award, "fas fa-trophy"), row)
	dom.Append(cols[0], dom.Append(dom.El("div", dom.Class("module-content", "honor-info")),
		dom.Paragraph(joinNonEmpty(", ", item.Unit, item.Time))))
	return m
}

func (e *Experiences) teaching(item content.Teaching) dom.Module {
	m := dom.NewModule("teaching", "teaching-module")
	row, cols, _ := dom.Columns(1, nil, []string{"teaching-info-column"})
	m.Add(dom.Header(joinNonEmpty(" ", item.Code, item.Course), "fas fa-chalkboard-teacher"), row)
	when := joinNonEmpty(" ", item.Season, item.Year.String())
	dom.Append(cols[0], dom.Append(dom.El("div", dom.Class("module-content", "teaching-info")),
		dom.Paragraph(joinNonEmpty(", ", item.Identity, item.School, when))))
	return m
}

func (e *Experiences) reviewer(g ReviewerGroup, label string) dom.Module {
	m := dom.NewModule("reviewer", "reviewer-module")
	row, cols, _ := dom.Columns(1, nil, []string{"reviewer-info-column"})
	m.Add(dom.Header(g.Name, "fas fa-user-edit"), row)
	dom.Append(cols[0], dom.Append(dom.El("div", dom.Class("module-content", "reviewer-info")),
		dom.Paragraph(label+", "+strings.Join(g.Years, " / "))))
	return m
}

// ReviewerGroup is one venue and the years reviewed for it.
type ReviewerGroup struct {
	Name  string
	Kind  string // "conference" or "journal"
	Years []string
}

// GroupReviewers folds review entries by venue. Groups keep the order in
// which their venue first appears; years are deduplicated and ascending.
// Entries naming no venue are dropped.
func GroupReviewers(list content.ReviewerList) []ReviewerGroup {
	var groups []ReviewerGroup
	index := make(map[string]int)
	for _, r := range list {
		name, kind := r.Conference, "conference"
		if name == "" {
			name, kind = r.Journal, "journal"
		}
		if name == "" {
			continue
		}
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, ReviewerGroup{Name: name, Kind: kind})
		}
		if y := strings.TrimSpace(r.Year.String()); y != "" && !slices.Contains(groups[i].Years, y) {
			groups[i].Years = append(groups[i].Years, y)
		}
	}
	for i := range groups {
		slices.SortStableFunc(groups[i].Years, compareYears)
	}
	return groups
}

func compareYears(a, b string) int {
	ya, erra := strconv.Atoi(a)
	yb, errb := strconv.Atoi(b)
	switch {
	case erra == nil && errb == nil:
		return ya - yb
	case erra == nil:
		return -1
	case errb == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func esc(s string) string {
	return html.EscapeString(s)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
