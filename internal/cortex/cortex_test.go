package cortex

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"somata/internal/config"
)

func cortexCfg() config.Cortex {
	cfg := config.Default().Cortex
	return cfg
}

func TestTuneRestedRewardedBody(t *testing.T) {
	cfg := cortexCfg()
	temp, topP, maxTokens := Tune(cfg, 0.1, 0.8, 0, 0)
	if temp <= cfg.Temperature {
		t.Fatalf("reward should raise temperature: %f", temp)
	}
	if topP < 0.8 {
		t.Fatalf("rested topP=%f want near ceiling", topP)
	}
	if maxTokens != cfg.MaxTokens {
		t.Fatalf("rested budget=%d want %d", maxTokens, cfg.MaxTokens)
	}
}

func TestTuneFatigueShrinksEverything(t *testing.T) {
	cfg := cortexCfg()
	temp, topP, maxTokens := Tune(cfg, 0.9, 0, 0, 0)
	if temp >= cfg.Temperature {
		t.Fatalf("fatigue should lower temperature: %f", temp)
	}
	if topP >= 0.95 {
		t.Fatalf("fatigue should narrow sampling: %f", topP)
	}
	if maxTokens != 15 {
		t.Fatalf("exhausted budget=%d want 15", maxTokens)
	}
	if _, _, mid := Tune(cfg, 0.5, 0, 0, 0); mid != 40 {
		t.Fatalf("tired budget=%d want 40", mid)
	}
}

func TestTuneTraumaCeiling(t *testing.T) {
	temp, _, _ := Tune(cortexCfg(), 0, 1, 0, 0.4)
	if temp != 0.4 {
		t.Fatalf("trauma ceiling ignored: %f", temp)
	}
}

func TestTuneImpairmentCutsBudget(t *testing.T) {
	cfg := cortexCfg()
	_, _, full := Tune(cfg, 0.2, 0.5, 0, 0)
	_, _, impaired := Tune(cfg, 0.2, 0.5, 1, 0)
	if impaired >= full {
		t.Fatalf("impaired budget %d not below %d", impaired, full)
	}
	if _, _, floor := Tune(cfg, 0.9, 0, 1, 0); floor < 8 {
		t.Fatalf("impairment crushed the budget to %d", floor)
	}
}

func TestTuneStaysInRange(t *testing.T) {
	for _, f := range []float32{0, 0.5, 1} {
		for _, r := range []float32{0, 0.5, 1} {
			temp, topP, maxTokens := Tune(cortexCfg(), f, r, 0, 0)
			if temp < 0.1 || temp > 1.5 {
				t.Fatalf("temp=%f out of range at f=%f r=%f", temp, f, r)
			}
			if topP < 0.2 || topP > 0.95 {
				t.Fatalf("topP=%f out of range at f=%f", topP, f)
			}
			if maxTokens <= 0 {
				t.Fatalf("budget=%d at f=%f", maxTokens, f)
			}
		}
	}
}

type stubClient struct {
	resp  Response
	err   error
	delay time.Duration
	calls int
}

func (s *stubClient) Complete(ctx context.Context, _ Request) (Response, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return s.resp, s.err
}

func workerLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWorkerRoundTrip(t *testing.T) {
	stub := &stubClient{resp: Response{Text: "a quiet hum", Echo: []float32{0.5}}}
	w := NewWorker(stub, workerLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if !w.Submit(Request{Prompt: "describe the hum"}) {
		t.Fatal("idle worker refused a request")
	}
	select {
	case resp := <-w.Responses():
		if resp.Err != nil || resp.Text != "a quiet hum" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no response")
	}
}

func TestWorkerRefusesWhileBusy(t *testing.T) {
	stub := &stubClient{delay: 200 * time.Millisecond, resp: Response{Text: "slow"}}
	w := NewWorker(stub, workerLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if !w.Submit(Request{}) {
		t.Fatal("first submit refused")
	}
	time.Sleep(50 * time.Millisecond) // let the worker pick it up and block
	w.Submit(Request{})               // fills the single request slot
	if w.Submit(Request{}) {
		t.Fatal("busy worker accepted a third request")
	}
	<-w.Responses()
}

func TestWorkerSurfacesFailures(t *testing.T) {
	stub := &stubClient{err: errors.New("connection refused")}
	w := NewWorker(stub, workerLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Submit(Request{Prompt: "anything"})
	select {
	case resp := <-w.Responses():
		if resp.Err == nil {
			t.Fatal("expected error in response")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no response")
	}
}
