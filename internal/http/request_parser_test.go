package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func parse(t *testing.T, body string) *RequestBodyParser {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if err := p.Parse(); err != nil {
		t.Fatalf("parse %q: %v", body, err)
	}
	return p
}

func TestRequestBodyParserJSON(t *testing.T) {
	p := parse(t, `{"name":" Rent\u0007 ","amount":800.10,"note":true}`)
	if !p.IsJSON() {
		t.Fatal("expected JSON")
	}
	if got := p.Get("name"); got != "Rent" {
		t.Fatalf("name = %q", got)
	}
	if got := p.Get("amount"); got != "800.10" {
		t.Fatalf("amount must keep its text, got %q", got)
	}
	if got := p.Get("missing"); got != "" {
		t.Fatalf("missing = %q", got)
	}
}

func TestRequestBodyParserForm(t *testing.T) {
	p := parse(t, "name=Coffee+shop&amount=3%2C50")
	if p.IsJSON() {
		t.Fatal("expected form")
	}
	if p.Get("name") != "Coffee shop" || p.Get("amount") != "3,50" {
		t.Fatalf("unexpected values %q %q", p.Get("name"), p.Get("amount"))
	}
}

func TestRequestBodyParserErrors(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	if err := NewRequestBodyParser(httptest.NewRecorder(), r).Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}

	big := strings.NewReader(`{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`)
	r = httptest.NewRequest(http.MethodPost, "/", big)
	if err := NewRequestBodyParser(httptest.NewRecorder(), r).Parse(); err == nil {
		t.Fatal("expected error for oversized body")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Fatalf("got %q", got)
	}
}
