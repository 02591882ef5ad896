package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildUpdatePayload(t *testing.T) {
	payload, err := buildUpdatePayload([]string{
		"min_seeders=5",
		"auto_select_best=false",
		"max_size_gb=42.5",
		"preferred_qualities=HD_1080P, HD_720P",
		"default_category=remux",
	})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}

	checks := map[string]string{
		"min_seeders":         "5",
		"auto_select_best":    "false",
		"max_size_gb":         "42.5",
		"preferred_qualities": `["HD_1080P","HD_720P"]`,
		"default_category":    `"remux"`,
	}
	for key, want := range checks {
		if got := string(payload[key]); got != want {
			t.Fatalf("%s = %s, want %s", key, got, want)
		}
	}

	if _, err := buildUpdatePayload([]string{"no-equals-sign"}); err == nil {
		t.Fatal("expected error for malformed pair")
	}
}

func TestPrefsSetCommand(t *testing.T) {
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/preferences" {
			t.Fatalf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("contentType") != "tv" {
			t.Fatalf("contentType = %q", r.URL.Query().Get("contentType"))
		}
		buf := make([]byte, 512)
		n, _ := r.Body.Read(buf)
		body = string(buf[:n])
		w.Write([]byte(`{"min_seeders":5,"auto_select_best":true}`))
	}))
	defer server.Close()

	out, err := runCommand(t, server, "prefs", "set", "min_seeders=5", "--type", "tv")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(body, `"min_seeders":5`) {
		t.Fatalf("unexpected body: %s", body)
	}
	if !strings.Contains(out, `"min_seeders": 5`) {
		t.Fatalf("unexpected output: %s", out)
	}
}
