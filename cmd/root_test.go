package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/photo-library/internal/config"
	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
)

func TestPrintError(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("opening store: %w", fmt.Errorf("dial db: %w", base))

	var buf bytes.Buffer
	printError(&buf, err)

	want := "Error: opening store\n\nCaused by:\n    0: dial db\n    1: connection refused\n"
	if buf.String() != want {
		t.Errorf("printError() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestPrintError_NoCause(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New("boom"))
	if buf.String() != "Error: boom\n" {
		t.Errorf("printError() = %q", buf.String())
	}
}

func TestErrorChain_JoinedMessage(t *testing.T) {
	// %v does not wrap, so the chain stops at one level.
	err := fmt.Errorf("outer: %v", errors.New("inner"))
	levels := errorChain(err)
	if len(levels) != 1 || levels[0] != "outer: inner" {
		t.Errorf("errorChain() = %q", levels)
	}
}

func strPtr(s string) *string { return &s }

func TestFullName(t *testing.T) {
	dob := time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		person database.Person
		want   string
	}{
		{
			name:   "first and surname",
			person: database.Person{FirstName: "Ada", Surname: "Lovelace", DOB: &dob},
			want:   "Ada Lovelace",
		},
		{
			name:   "middle names",
			person: database.Person{FirstName: "Augusta", MiddleNames: strPtr("Ada"), Surname: "King"},
			want:   "Augusta Ada King",
		},
		{
			name:   "display name wins",
			person: database.Person{FirstName: "Jiří", Surname: "Novák", DisplayName: strPtr("Jirka")},
			want:   "Jirka",
		},
		{
			name:   "empty display name ignored",
			person: database.Person{FirstName: "Jiří", Surname: "Novák", DisplayName: strPtr("")},
			want:   "Jiří Novák",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fullName(&tt.person); got != tt.want {
				t.Errorf("fullName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsPlaceholder(t *testing.T) {
	minted := database.Person{
		FirstName:   constants.PlaceholderFirstName,
		MiddleNames: strPtr(constants.PlaceholderMiddleNames),
		Surname:     constants.PlaceholderSurname,
	}
	if !isPlaceholder(&minted) {
		t.Error("expected minted person to be a placeholder")
	}
	renamed := minted
	renamed.FirstName = "Ada"
	if isPlaceholder(&renamed) {
		t.Error("renamed person reported as placeholder")
	}
}

func TestWritePeople(t *testing.T) {
	var buf bytes.Buffer
	writePeople(&buf, nil)
	if buf.String() != "No people found\n" {
		t.Errorf("empty output = %q", buf.String())
	}

	buf.Reset()
	dob := time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)
	writePeople(&buf, []database.Person{{ID: 7, FirstName: "Ada", Surname: "Lovelace", DOB: &dob}})
	out := buf.String()
	for _, want := range []string{"Ada Lovelace", "1815-12-10", "1 people"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestApplyServeFlags(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.AllowedOrigins = []string{"https://a.example"}

	if err := serveCmd.Flags().Parse([]string{
		"--port", "9090",
		"--host", "127.0.0.1",
		"--allowed-origin", "https://b.example",
		"--workers", "3",
		"--tolerance", "0.5",
	}); err != nil {
		t.Fatal(err)
	}
	staticDir := cfg.Server.StaticDir
	applyServeFlags(serveCmd, cfg)

	if cfg.Server.Port != 9090 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("addr = %s", cfg.Server.Addr())
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Ingest.Workers != 3 {
		t.Errorf("Workers = %d", cfg.Ingest.Workers)
	}
	if cfg.Matching.Tolerance != 0.5 {
		t.Errorf("Tolerance = %v", cfg.Matching.Tolerance)
	}
	if cfg.Server.StaticDir != staticDir {
		t.Errorf("StaticDir changed to %q without the flag", cfg.Server.StaticDir)
	}
}

func TestMustGet_UnknownFlagPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic for an unregistered flag")
		}
		if msg, _ := r.(string); msg == "" || !bytes.Contains([]byte(msg), []byte("--no-such-flag")) {
			t.Errorf("unexpected panic value %v", r)
		}
	}()
	mustGetInt(uploadCmd, "no-such-flag")
}

func TestMustGet_Defaults(t *testing.T) {
	if got := mustGetInt(uploadCmd, "concurrency"); got != constants.DefaultUploadConcurrency {
		t.Errorf("concurrency default = %d", got)
	}
	if mustGetBool(uploadCmd, "quiet") {
		t.Error("quiet should default to false")
	}
	if got := mustGetString(peopleListCmd, "query"); got != "" {
		t.Errorf("query default = %q", got)
	}
}
