package content

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTypeFileName(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeInfo, "info_en.json"},
		{TypeIntro, "intro_en.txt"},
		{TypeNews, "news_en.json"},
		{TypeHonors, "honors_en.json"},
		{TypePaper, "papers_en.json"},
		{TypePatent, "patents_en.json"},
	}
	for _, tt := range tests {
		if got := tt.typ.FileName("en"); got != tt.want {
			t.Errorf("%s.FileName = %q, want %q", tt.typ, got, tt.want)
		}
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(typ.String())
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if _, err := ParseType("blog"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("ParseType(blog) err = %v, want ErrUnknownType", err)
	}
}

func TestText_Lenient(t *testing.T) {
	var v struct {
		A Text `json:"a"`
		B Text `json:"b"`
		C Text `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": 2020, "b": "-5", "c": null}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A != "2020" || v.B != "-5" || v.C != "" {
		t.Errorf("got %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a": true}`), &v); err == nil {
		t.Error("expected error for boolean text")
	}
}

func TestInfo_UTCOffset(t *testing.T) {
	tests := []struct {
		utc  Text
		want int
	}{
		{"", DefaultUTCOffset},
		{"garbage", DefaultUTCOffset},
		{"-5", -5},
		{"0", 0},
		{"9", 9},
	}
	for _, tt := range tests {
		if got := (Info{UTC: tt.utc}).UTCOffset(); got != tt.want {
			t.Errorf("UTCOffset(%q) = %d, want %d", tt.utc, got, tt.want)
		}
	}
}

func TestNewsList_Sorted(t *testing.T) {
	in := NewsList{
		{Time: "2021-05-01", Content: "a"},
		{Time: "not a date", Content: "x"},
		{Time: "2023-01-10", Content: "b"},
		{Time: "2022-07-15", Content: "c"},
		{Time: "2022-07-15", Content: "d"},
	}
	got := in.Sorted()

	var order []string
	for _, n := range got {
		order = append(order, n.Content)
	}
	want := []string{"b", "c", "d", "a", "x"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if in[0].Content != "a" {
		t.Error("Sorted must not reorder the receiver")
	}
}

func TestPaperIndex_Years(t *testing.T) {
	idx := PaperIndex{
		"2019":  {{Title: "a"}},
		"2023":  {{Title: "b"}, {Title: "c"}},
		"2100":  {{Title: "d"}},
		"Other": {{Title: "e"}},
	}
	want := []string{"2100", "2023", "2019", "Other"}
	if diff := cmp.Diff(want, idx.Years()); diff != "" {
		t.Errorf("years mismatch (-want +got):\n%s", diff)
	}
	if idx.Len() != 5 {
		t.Errorf("Len = %d, want 5", idx.Len())
	}
}

func TestPaper_VenueAndPlace(t *testing.T) {
	p := Paper{Journal: "TPAMI", Volume: "Vol. 1"}
	if p.Venue() != "TPAMI" || p.Place() != "Vol. 1" {
		t.Errorf("journal paper: venue=%q place=%q", p.Venue(), p.Place())
	}
	p = Paper{Conference: "CVPR", Journal: "ignored", Location: "Seattle", Volume: "ignored"}
	if p.Venue() != "CVPR" || p.Place() != "Seattle" {
		t.Errorf("conference paper: venue=%q place=%q", p.Venue(), p.Place())
	}
}

func TestDecode(t *testing.T) {
	p, err := Decode(TypeReviewer, []byte(`[{"conference":"A","year":2020},{"journal":"B","year":"2021"}]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := ReviewerList{{Conference: "A", Year: "2020"}, {Journal: "B", Year: "2021"}}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("reviewer mismatch (-want +got):\n%s", diff)
	}

	intro, err := Decode(TypeIntro, []byte("first\r\n\r\nsecond\n"))
	if err != nil {
		t.Fatalf("decode intro: %v", err)
	}
	if diff := cmp.Diff([]string{"first", "second"}, intro.(Intro).Paragraphs()); diff != "" {
		t.Errorf("paragraphs mismatch (-want +got):\n%s", diff)
	}

	if _, err := Decode(TypeNews, []byte(`{"not":"a list"}`)); err == nil {
		t.Error("expected decode error for malformed news")
	}
	if _, err := Decode(Type(99), nil); !errors.Is(err, ErrUnknownType) {
		t.Errorf("err = %v, want ErrUnknownType", err)
	}
}
