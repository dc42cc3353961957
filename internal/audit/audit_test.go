package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Event Tests
// =============================================================================

func TestU_NewEvent_Creation(t *testing.T) {
	event := NewEvent(EventCertImported, ResultSuccess)

	if event.EventType != EventCertImported {
		t.Errorf("expected EventType=%s, got %s", EventCertImported, event.EventType)
	}
	if event.Result != ResultSuccess {
		t.Errorf("expected Result=%s, got %s", ResultSuccess, event.Result)
	}
	if event.Timestamp == "" {
		t.Error("Timestamp should not be empty")
	}
	if event.Actor.Type != "user" {
		t.Errorf("expected Actor.Type=user, got %s", event.Actor.Type)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
}

func TestU_NewEvent_UniqueIDs(t *testing.T) {
	a := NewEvent(EventInventoryRead, ResultSuccess)
	b := NewEvent(EventInventoryRead, ResultSuccess)
	if a.ID == b.ID {
		t.Errorf("events share ID %s", a.ID)
	}
	if NewRunID() == NewRunID() {
		t.Error("NewRunID() returned the same value twice")
	}
}

func TestU_Event_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   *Event
		wantErr bool
	}{
		{
			name:    "[Unit] Validate: valid event",
			event:   NewEvent(EventBindingReconciled, ResultSuccess),
			wantErr: false,
		},
		{
			name: "[Unit] Validate: missing event_type",
			event: &Event{
				Timestamp: "2024-01-15T10:00:00Z",
				Actor:     Actor{Type: "user", ID: "admin"},
				Result:    ResultSuccess,
			},
			wantErr: true,
		},
		{
			name: "[Unit] Validate: missing result",
			event: &Event{
				EventType: EventCertStaged,
				Timestamp: "2024-01-15T10:00:00Z",
				Actor:     Actor{Type: "user", ID: "admin"},
			},
			wantErr: true,
		},
		{
			name: "[Unit] Validate: missing timestamp",
			event: &Event{
				EventType: EventCertStaged,
				Actor:     Actor{Type: "user", ID: "admin"},
				Result:    ResultSuccess,
			},
			wantErr: true,
		},
		{
			name: "[Unit] Validate: missing actor id",
			event: &Event{
				EventType: EventCertStaged,
				Timestamp: "2024-01-15T10:00:00Z",
				Actor:     Actor{Type: "user"},
				Result:    ResultSuccess,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestU_Event_CanonicalJSON(t *testing.T) {
	event := NewEvent(EventBindingReconciled, ResultSuccess).
		WithObject(Object{Type: "binding", Host: "web01", Site: "Default Web Site", Thumbprint: "AB12"})
	event.HashPrev = GenesisHash
	event.Hash = "sha256:ignored"

	canonical, err := event.CanonicalJSON()
	if err != nil {
		t.Fatalf("CanonicalJSON() error = %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(canonical, &parsed); err != nil {
		t.Fatalf("CanonicalJSON() is not valid JSON: %v", err)
	}
	if _, ok := parsed["hash"]; ok {
		t.Error("CanonicalJSON() should not contain hash")
	}
	if parsed["hash_prev"] != GenesisHash {
		t.Errorf("hash_prev = %v, want %s", parsed["hash_prev"], GenesisHash)
	}
	if parsed["id"] != event.ID {
		t.Errorf("id = %v, want %s", parsed["id"], event.ID)
	}
}

func TestU_Event_WithActor(t *testing.T) {
	event := NewEvent(EventInventoryRead, ResultSuccess).
		WithActor(Actor{Type: "service", ID: "wincert-api"})

	if event.Actor.Type != "service" || event.Actor.ID != "wincert-api" {
		t.Errorf("Actor = %+v", event.Actor)
	}
}

func TestU_Event_NoSecretsInJSON(t *testing.T) {
	event := NewEvent(EventCertImported, ResultFailure).
		WithObject(Object{Type: "store", Host: "web01", Store: "My", Path: "site.pfx"}).
		WithContext(Context{Method: "certutil", Variant: "importpfx", ExitCode: 2, Reason: "bad password"})

	data, err := event.JSON()
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	for _, forbidden := range []string{`"password":`, `"blob":`, `"private_key":`} {
		if strings.Contains(string(data), forbidden) {
			t.Errorf("event JSON contains %q: %s", forbidden, data)
		}
	}
}

// =============================================================================
// FileWriter Tests
// =============================================================================

func TestU_FileWriter_Write(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	if writer.LastHash() != GenesisHash {
		t.Errorf("initial LastHash() = %s, want %s", writer.LastHash(), GenesisHash)
	}

	event := NewEvent(EventCertStaged, ResultSuccess).
		WithObject(Object{Type: "store", Host: "web01", Store: "My"})
	if err := writer.Write(event); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if event.HashPrev != GenesisHash {
		t.Errorf("HashPrev = %s, want %s", event.HashPrev, GenesisHash)
	}
	if !strings.HasPrefix(event.Hash, HashPrefix) {
		t.Errorf("Hash = %s, want prefix %s", event.Hash, HashPrefix)
	}
	if writer.LastHash() != event.Hash {
		t.Errorf("LastHash() = %s, want %s", writer.LastHash(), event.Hash)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var parsed Event
	if err := json.Unmarshal([]byte(lines[0]), &parsed); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if parsed.Object.Host != "web01" {
		t.Errorf("Object.Host = %s, want web01", parsed.Object.Host)
	}
}

func TestU_FileWriter_Append(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	writer1, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	_ = writer1.Write(NewEvent(EventCertStaged, ResultSuccess))
	_ = writer1.Write(NewEvent(EventCertImported, ResultSuccess))
	hash := writer1.LastHash()
	_ = writer1.Close()

	writer2, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() reopen error = %v", err)
	}
	if writer2.LastHash() != hash {
		t.Errorf("reopened LastHash() = %s, want %s", writer2.LastHash(), hash)
	}
	event := NewEvent(EventBindingReconciled, ResultSuccess)
	if err := writer2.Write(event); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if event.HashPrev != hash {
		t.Errorf("HashPrev = %s, want %s", event.HashPrev, hash)
	}
	_ = writer2.Close()

	count, err := VerifyChain(logPath)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if count != 3 {
		t.Errorf("VerifyChain() count = %d, want 3", count)
	}
}

func TestU_FileWriter_Path(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer func() { _ = writer.Close() }()

	if writer.Path() != logPath {
		t.Errorf("Path() = %s, want %s", writer.Path(), logPath)
	}
}

func TestU_FileWriter_InvalidPath(t *testing.T) {
	_, err := NewFileWriter("/nonexistent/directory/audit.jsonl")
	if err == nil {
		t.Error("NewFileWriter() should fail with invalid path")
	}
}

func TestU_FileWriter_CorruptExistingLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	if err := os.WriteFile(logPath, []byte("{not json\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileWriter(logPath); err == nil {
		t.Error("NewFileWriter() should fail on a corrupt log")
	}
}

func TestU_FileWriter_CloseIdempotent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestU_FileWriter_WriteAfterClose(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	_ = writer.Close()

	err = writer.Write(NewEvent(EventCertImported, ResultSuccess))
	if !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Write() after Close() error = %v, want ErrWriterClosed", err)
	}
}

func TestU_FileWriter_InvalidEvent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer func() { _ = writer.Close() }()

	if err := writer.Write(&Event{}); err == nil {
		t.Error("Write() should reject an invalid event")
	}
	if writer.LastHash() != GenesisHash {
		t.Error("an invalid event must not advance the chain")
	}
}

func TestU_FileWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit_concurrent.jsonl")
	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 10

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*eventsPerGoroutine)
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				event := NewEvent(EventBindingReconciled, ResultSuccess).
					WithObject(Object{Type: "binding", Host: fmt.Sprintf("web%02d", id), Endpoint: fmt.Sprintf("*:%d:", 443+j)})
				if err := writer.Write(event); err != nil {
					errs <- err
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent write error: %v", err)
	}
	_ = writer.Close()

	count, err := VerifyChain(logPath)
	if err != nil {
		t.Errorf("VerifyChain() error = %v", err)
	}
	if count != numGoroutines*eventsPerGoroutine {
		t.Errorf("VerifyChain() count = %d, want %d", count, numGoroutines*eventsPerGoroutine)
	}
}

// =============================================================================
// VerifyChain Tests
// =============================================================================

func writeEvents(t *testing.T, n int) string {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	writer, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	for i := 0; i < n; i++ {
		event := NewEvent(EventInventoryRead, ResultSuccess).
			WithObject(Object{Type: "store", Host: "web01", Store: "My"}).
			WithContext(Context{Items: i})
		if err := writer.Write(event); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	_ = writer.Close()
	return logPath
}

func TestU_VerifyChain_ValidLog(t *testing.T) {
	logPath := writeEvents(t, 5)

	count, err := VerifyChain(logPath)
	if err != nil {
		t.Fatalf("VerifyChain() error = %v", err)
	}
	if count != 5 {
		t.Errorf("VerifyChain() count = %d, want 5", count)
	}
}

func TestU_VerifyChain_Tampering(t *testing.T) {
	logPath := writeEvents(t, 3)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), `"store":"My"`, `"store":"Root"`, 1)
	if tampered == string(data) {
		t.Fatal("tampering did not change the log")
	}
	if err := os.WriteFile(logPath, []byte(tampered), 0600); err != nil {
		t.Fatal(err)
	}

	count, err := VerifyChain(logPath)
	if err == nil {
		t.Fatal("VerifyChain() should detect tampering")
	}
	if !strings.Contains(err.Error(), "hash mismatch") {
		t.Errorf("error = %v, want hash mismatch", err)
	}
	if count != 0 {
		t.Errorf("VerifyChain() count = %d, want 0", count)
	}
}

func TestU_VerifyChain_BrokenChain(t *testing.T) {
	logPath := writeEvents(t, 3)

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// Drop the middle event.
	broken := lines[0] + "\n" + lines[2] + "\n"
	if err := os.WriteFile(logPath, []byte(broken), 0600); err != nil {
		t.Fatal(err)
	}

	count, err := VerifyChain(logPath)
	if err == nil || !strings.Contains(err.Error(), "hash chain broken") {
		t.Errorf("VerifyChain() error = %v, want hash chain broken", err)
	}
	if count != 1 {
		t.Errorf("VerifyChain() count = %d, want 1", count)
	}
}

func TestU_VerifyChain_EmptyFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "empty.jsonl")
	if err := os.WriteFile(logPath, nil, 0600); err != nil {
		t.Fatal(err)
	}

	count, err := VerifyChain(logPath)
	if err != nil {
		t.Errorf("VerifyChain() error = %v", err)
	}
	if count != 0 {
		t.Errorf("VerifyChain() count = %d, want 0", count)
	}
}

func TestU_VerifyChain_NonExistentFile(t *testing.T) {
	if _, err := VerifyChain("/nonexistent/audit.jsonl"); err == nil {
		t.Error("VerifyChain() should fail for a missing file")
	}
}

func TestU_VerifyReader_InvalidJSON(t *testing.T) {
	_, err := VerifyReader(strings.NewReader("not json\n"))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Errorf("VerifyReader() error = %v, want invalid JSON", err)
	}
}

// =============================================================================
// NopWriter / MultiWriter / MemoryWriter Tests
// =============================================================================

func TestU_NopWriter_Write(t *testing.T) {
	var w NopWriter
	if err := w.Write(NewEvent(EventCertImported, ResultSuccess)); err != nil {
		t.Errorf("NopWriter.Write() error = %v", err)
	}
	if w.LastHash() != GenesisHash {
		t.Errorf("NopWriter.LastHash() = %s, want %s", w.LastHash(), GenesisHash)
	}
	if err := w.Close(); err != nil {
		t.Errorf("NopWriter.Close() error = %v", err)
	}
}

type failingWriter struct {
	failOnWrite bool
	failOnClose bool
}

func (f *failingWriter) Write(*Event) error {
	if f.failOnWrite {
		return errors.New("write failed")
	}
	return nil
}

func (f *failingWriter) Close() error {
	if f.failOnClose {
		return errors.New("close failed")
	}
	return nil
}

func (f *failingWriter) LastHash() string {
	return GenesisHash
}

func TestU_MultiWriter_Write(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	fileWriter, err := NewFileWriter(logPath)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	memory := NewMemoryWriter()

	multi := NewMultiWriter(fileWriter, memory)
	event := NewEvent(EventReconciliationCompleted, ResultSuccess).
		WithContext(Context{Mode: "renewal", Items: 2})
	if err := multi.Write(event); err != nil {
		t.Fatalf("MultiWriter.Write() error = %v", err)
	}

	if multi.LastHash() != fileWriter.LastHash() {
		t.Errorf("MultiWriter.LastHash() = %s, want %s", multi.LastHash(), fileWriter.LastHash())
	}
	if len(memory.Events()) != 1 {
		t.Errorf("memory events = %d, want 1", len(memory.Events()))
	}
	if err := multi.Close(); err != nil {
		t.Errorf("MultiWriter.Close() error = %v", err)
	}

	count, err := VerifyChain(logPath)
	if err != nil || count != 1 {
		t.Errorf("VerifyChain() = %d, %v; want 1, nil", count, err)
	}
}

func TestU_MultiWriter_Empty(t *testing.T) {
	multi := NewMultiWriter()
	if err := multi.Write(NewEvent(EventCertImported, ResultSuccess)); err != nil {
		t.Errorf("Write() error = %v", err)
	}
	if multi.LastHash() != GenesisHash {
		t.Errorf("LastHash() = %s, want %s", multi.LastHash(), GenesisHash)
	}
}

func TestU_MultiWriter_Failures(t *testing.T) {
	tests := []struct {
		name    string
		writers []Writer
	}{
		{"[Unit] MultiWriter: first fails", []Writer{&failingWriter{failOnWrite: true}, NewMemoryWriter()}},
		{"[Unit] MultiWriter: second fails", []Writer{NewMemoryWriter(), &failingWriter{failOnWrite: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			multi := NewMultiWriter(tt.writers...)
			if err := multi.Write(NewEvent(EventCertImported, ResultSuccess)); err == nil {
				t.Error("MultiWriter.Write() should fail")
			}
		})
	}
}

func TestU_MultiWriter_CloseErrors(t *testing.T) {
	multi := NewMultiWriter(&failingWriter{failOnClose: true}, &failingWriter{failOnClose: true})
	if err := multi.Close(); err == nil {
		t.Error("MultiWriter.Close() should return error when writers fail")
	}
}

func TestU_MemoryWriter_Chain(t *testing.T) {
	w := NewMemoryWriter()
	_ = w.Write(NewEvent(EventCertStaged, ResultSuccess))
	_ = w.Write(NewEvent(EventCertImported, ResultFailure))
	_ = w.Write(NewEvent(EventCertImported, ResultSuccess))

	events := w.Events()
	if len(events) != 3 {
		t.Fatalf("Events() = %d, want 3", len(events))
	}
	if events[0].HashPrev != GenesisHash {
		t.Errorf("first HashPrev = %s", events[0].HashPrev)
	}
	for i := 1; i < len(events); i++ {
		if events[i].HashPrev != events[i-1].Hash {
			t.Errorf("event %d not chained", i)
		}
	}
	if got := len(w.OfType(EventCertImported)); got != 2 {
		t.Errorf("OfType(CERT_IMPORTED) = %d, want 2", got)
	}

	_ = w.Close()
	if err := w.Write(NewEvent(EventCertStaged, ResultSuccess)); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("Write() after Close() error = %v, want ErrWriterClosed", err)
	}
}
