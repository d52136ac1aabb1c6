package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/soochol/docbridge/internal/extract"
	"github.com/soochol/docbridge/internal/filetype"
	"github.com/soochol/docbridge/internal/validate"
)

func newProcessor() *Processor {
	return New(validate.New(), extract.New())
}

// drain collects all progress events concurrently so emission never stalls.
func drain(events <-chan Progress) <-chan []Progress {
	out := make(chan []Progress, 1)
	go func() {
		var all []Progress
		for p := range events {
			all = append(all, p)
		}
		out <- all
	}()
	return out
}

func TestProcessSingleFile(t *testing.T) {
	p := newProcessor()

	events, results, err := p.Process(context.Background(), "proc-1", Input{
		Data:     []byte("hello ingestion world"),
		MIMEType: "text/plain",
		FileName: "note.txt",
	}, Options{ExtractText: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	collected := drain(events)
	result := <-results
	if result.Err != nil {
		t.Fatalf("result err: %v", result.Err)
	}

	if result.Content.Text != "hello ingestion world" {
		t.Errorf("text = %q", result.Content.Text)
	}
	if got := result.Content.Metadata["extractionSuccess"]; got != true {
		t.Errorf("extractionSuccess = %v", got)
	}
	if got := result.Content.Metadata["wordCount"]; got != 3 {
		t.Errorf("wordCount = %v", got)
	}
	if got := result.Content.Metadata["category"]; got != "text" {
		t.Errorf("category = %v", got)
	}
	if result.Content.Encoding != "utf-8" {
		t.Errorf("encoding = %q, want utf-8", result.Content.Encoding)
	}
	if _, ok := result.Content.Metadata["processingTimeMs"]; !ok {
		t.Error("missing processingTimeMs")
	}

	all := <-collected
	if len(all) == 0 {
		t.Fatal("no progress events")
	}
	stagesSeen := map[Stage]bool{}
	lastPct := -1
	for _, ev := range all {
		stagesSeen[ev.Stage] = true
		if ev.Percentage < lastPct {
			t.Errorf("progress went backwards: %d after %d", ev.Percentage, lastPct)
		}
		lastPct = ev.Percentage
	}
	for _, want := range []Stage{StageReading, StageParsing, StageExtracting, StageFormatting, StageComplete} {
		if !stagesSeen[want] {
			t.Errorf("stage %s never emitted", want)
		}
	}
	final := all[len(all)-1]
	if final.Stage != StageComplete || final.Percentage != 100 {
		t.Errorf("final event = %+v", final)
	}

	if p.InFlight("proc-1") {
		t.Error("processing id must be released after completion")
	}
}

func TestProcessValidationFailure(t *testing.T) {
	p := newProcessor()

	events, results, err := p.Process(context.Background(), "proc-2", Input{
		Data:     nil, // empty file fails validation
		MIMEType: "text/plain",
		FileName: "empty.txt",
	}, Options{ExtractText: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	<-drain(events)

	result := <-results
	if result.Err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(result.Err.Error(), validate.CodeEmptyFile) {
		t.Errorf("err = %v, want EMPTY_FILE mention", result.Err)
	}
	if p.InFlight("proc-2") {
		t.Error("id must be released on the failure path too")
	}
}

func TestProcessExtractionFailureDegrades(t *testing.T) {
	p := newProcessor()

	events, results, err := p.Process(context.Background(), "proc-3", Input{
		Data:     []byte("this is not a real pdf"),
		MIMEType: "application/pdf",
		FileName: "broken.pdf",
	}, Options{ExtractText: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	<-drain(events)

	result := <-results
	if result.Err != nil {
		t.Fatalf("extraction failure must not fail the call: %v", result.Err)
	}
	if got := result.Content.Metadata["extractionSuccess"]; got != false {
		t.Errorf("extractionSuccess = %v, want false", got)
	}
	if _, ok := result.Content.Metadata["extractionError"]; !ok {
		t.Error("missing extractionError marker")
	}
	if result.Content.Text != "" {
		t.Errorf("text should stay empty, got %q", result.Content.Text)
	}
}

// blockingStrategy holds extraction until released, to keep an id in flight.
type blockingStrategy struct {
	release chan struct{}
}

func (b *blockingStrategy) Extract([]byte, string) (string, error) {
	<-b.release
	return "done", nil
}

func TestProcessDuplicateIDRejected(t *testing.T) {
	ex := extract.New()
	block := &blockingStrategy{release: make(chan struct{})}
	ex.Register(filetype.CategoryText, block)
	p := New(validate.New(), ex)

	in := Input{Data: []byte("x"), MIMEType: "text/plain", FileName: "a.txt"}
	events, results, err := p.Process(context.Background(), "dup", in, Options{ExtractText: true})
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	go func() { <-drain(events) }()

	_, _, err = p.Process(context.Background(), "dup", in, Options{ExtractText: true})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}

	// A different id is fine concurrently.
	ev2, res2, err := p.Process(context.Background(), "other", Input{Data: []byte("y"), MIMEType: "text/plain", FileName: "b.txt"}, Options{})
	if err != nil {
		t.Errorf("distinct id rejected: %v", err)
	}
	go func() { <-drain(ev2) }()
	<-res2

	close(block.release)
	<-results

	// Once finished, the id is reusable.
	ev3, res3, err := p.Process(context.Background(), "dup", in, Options{})
	if err != nil {
		t.Errorf("id not released after completion: %v", err)
	}
	go func() { <-drain(ev3) }()
	<-res3
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	p := newProcessor()

	items := []Input{
		{Data: []byte("one"), MIMEType: "text/plain", FileName: "1.txt"},
		{Data: []byte("two"), MIMEType: "text/plain", FileName: "2.txt"},
		{Data: nil, MIMEType: "text/plain", FileName: "3.txt"}, // corrupt
		{Data: []byte("four"), MIMEType: "text/plain", FileName: "4.txt"},
		{Data: []byte("five"), MIMEType: "text/plain", FileName: "5.txt"},
	}

	events, results, err := p.ProcessBatch(context.Background(), "batch-1", items, Options{ExtractText: true})
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	collected := drain(events)
	batch := <-results

	if len(batch.Items) != 5 {
		t.Fatalf("items = %d, want 5", len(batch.Items))
	}
	if batch.Succeeded != 4 {
		t.Errorf("succeeded = %d, want 4", batch.Succeeded)
	}
	if batch.Items[2].Err == nil {
		t.Error("item 3 should carry an error")
	}
	if batch.Items[2].Content.SizeBytes != 0 {
		t.Error("failed item should have zero-length content")
	}
	for _, i := range []int{0, 1, 3, 4} {
		if batch.Items[i].Err != nil {
			t.Errorf("item %d failed: %v", i+1, batch.Items[i].Err)
		}
		if batch.Items[i].Content.Text == "" {
			t.Errorf("item %d missing text", i+1)
		}
	}

	all := <-collected
	final := all[len(all)-1]
	if final.Percentage != 100 || final.ItemsProcessed != 5 || final.TotalItems != 5 {
		t.Errorf("final progress = %+v", final)
	}
	if !strings.Contains(final.Message, "4 of 5") {
		t.Errorf("final message = %q", final.Message)
	}
}

func TestProcessContextCancelled(t *testing.T) {
	p := newProcessor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events, results, err := p.Process(ctx, "cancelled", Input{
		Data:     []byte("abc"),
		MIMEType: "text/plain",
		FileName: "a.txt",
	}, Options{})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	<-drain(events)

	result := <-results
	if !errors.Is(result.Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", result.Err)
	}

	deadline := time.Now().Add(time.Second)
	for p.InFlight("cancelled") && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if p.InFlight("cancelled") {
		t.Error("id must be released after cancellation")
	}
}
