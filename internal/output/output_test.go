package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestWriterSuccessJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	w := &Writer{JSONMode: true, Stdout: &stdout, Stderr: &stderr}
	w.Success(map[string]string{"file": "a<b>&c.txt"}, "")

	var raw map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["ok"] != true {
		t.Errorf("ok = %v, want true", raw["ok"])
	}
	if _, exists := raw["message"]; exists {
		t.Error("expected message to be omitted when empty")
	}
	if !bytes.Contains(stdout.Bytes(), []byte("a<b>&c.txt")) {
		t.Errorf("expected unescaped file name, got %q", stdout.String())
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty", stderr.String())
	}
}

func TestWriterSuccessHuman(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"empty", "", ""},
		{"single line", "done", "done\n"},
		{"table", "a\nb", "a\nb\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			w := &Writer{Stdout: &stdout, Stderr: &bytes.Buffer{}}
			w.Success("ignored", tt.message)
			if stdout.String() != tt.want {
				t.Errorf("stdout = %q, want %q", stdout.String(), tt.want)
			}
		})
	}
}

func TestWriterErrorJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	w := &Writer{JSONMode: true, Stdout: &stdout, Stderr: &stderr}

	code := w.Error(errors.New("fail"), ErrRemote)
	if code != ExitRemote {
		t.Errorf("exit code = %d, want %d", code, ExitRemote)
	}
	var env errorEnvelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.OK || env.Error != "fail" || env.Code != ErrRemote || env.ExitCode != ExitRemote {
		t.Errorf("envelope = %+v", env)
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q, want empty", stderr.String())
	}
}

func TestWriterErrorHuman(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var stdout, stderr bytes.Buffer
	w := &Writer{Stdout: &stdout, Stderr: &stderr}

	code := w.Error(errors.New("fail"), ErrGeneral)
	if code != ExitGeneral {
		t.Errorf("exit code = %d, want %d", code, ExitGeneral)
	}
	if stderr.String() != "Error: fail\n" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "Error: fail\n")
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want empty", stdout.String())
	}
}

func TestWriterNotices(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	tests := []struct {
		name string
		w    Writer
		emit func(w *Writer)
		want string
	}{
		{"info", Writer{}, func(w *Writer) { w.Info("hello %s", "world") }, "hello world\n"},
		{"info quiet", Writer{QuietMode: true}, func(w *Writer) { w.Info("hidden") }, ""},
		{"info json", Writer{JSONMode: true}, func(w *Writer) { w.Info("hidden") }, ""},
		{"warn", Writer{}, func(w *Writer) { w.Warn("%d failed", 2) }, "Warning: 2 failed\n"},
		{"warn quiet", Writer{QuietMode: true}, func(w *Writer) { w.Warn("kept") }, "Warning: kept\n"},
		{"warn json", Writer{JSONMode: true}, func(w *Writer) { w.Warn("hidden") }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			w := tt.w
			w.Stdout, w.Stderr = &stdout, &stderr
			tt.emit(&w)
			if stderr.String() != tt.want {
				t.Errorf("stderr = %q, want %q", stderr.String(), tt.want)
			}
			if stdout.Len() != 0 {
				t.Errorf("stdout = %q, want empty", stdout.String())
			}
		})
	}
}

func TestExitCodeForErrorMapping(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrGeneral, ExitGeneral},
		{ErrNotFound, ExitNotFound},
		{ErrValidation, ExitValidation},
		{ErrRemote, ExitRemote},
		{ErrCanceled, ExitCanceled},
		{ErrorCode("unknown"), ExitGeneral},
	}

	for _, tt := range tests {
		if got := ExitCodeForError(tt.code); got != tt.want {
			t.Errorf("ExitCodeForError(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}
