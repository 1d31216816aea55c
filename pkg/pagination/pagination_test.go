package pagination

import (
	"net/url"
	"testing"
)

func TestNormalized_Defaults(t *testing.T) {
	p := Params{}.Normalized()
	if p.Page != 1 {
		t.Errorf("expected page 1, got %d", p.Page)
	}
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
}

func TestNormalized_MaxLimit(t *testing.T) {
	p := Params{Page: 2, Limit: 500}.Normalized()
	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
	if p.Page != 2 {
		t.Errorf("expected page preserved, got %d", p.Page)
	}
}

func TestNormalized_NegativePage(t *testing.T) {
	p := Params{Page: -3, Limit: 10}.Normalized()
	if p.Page != 1 {
		t.Errorf("expected page floored at 1, got %d", p.Page)
	}
}

func TestApply(t *testing.T) {
	q := url.Values{}
	q.Set("action", "USER_LOGIN")
	Params{Page: 3, Limit: 50}.Apply(q)

	if q.Get("page") != "3" || q.Get("limit") != "50" {
		t.Errorf("unexpected query: %v", q)
	}
	if q.Get("action") != "USER_LOGIN" {
		t.Error("Apply must not clobber existing parameters")
	}
}

func TestPageInfo_Navigation(t *testing.T) {
	pi := PageInfo{Page: 2, Limit: 20, Total: 55, TotalPages: 3}
	if !pi.HasNext() || !pi.HasPrevious() {
		t.Error("middle page must have both neighbours")
	}

	first := PageInfo{Page: 1, TotalPages: 3}
	if first.HasPrevious() {
		t.Error("first page has no previous")
	}
	last := PageInfo{Page: 3, TotalPages: 3}
	if last.HasNext() {
		t.Error("last page has no next")
	}
}

func TestNextPreviousPage(t *testing.T) {
	p := Params{Page: 2, Limit: 20}
	if next := p.NextPage(); next.Page != 3 {
		t.Errorf("expected page 3, got %d", next.Page)
	}
	if prev := p.PreviousPage(); prev.Page != 1 {
		t.Errorf("expected page 1, got %d", prev.Page)
	}
	if prev := (Params{Page: 1}).PreviousPage(); prev.Page != 1 {
		t.Errorf("previous of first page must stay 1, got %d", prev.Page)
	}
}
