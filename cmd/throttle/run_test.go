package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"taxmate-hq/throttle/pkg/config"
	"taxmate-hq/throttle/pkg/telemetry/logging"
	"taxmate-hq/throttle/pkg/throttle"
)

func TestApplyRunOverrides(t *testing.T) {
	origFlags, origVerbose := runFlags, verbose
	defer func() { runFlags, verbose = origFlags, origVerbose }()

	tests := []struct {
		name       string
		listen     string
		logLevel   string
		verbose    bool
		wantListen string
		wantLevel  string
		wantErr    bool
	}{
		{name: "no overrides", wantListen: config.DefaultListenAddress, wantLevel: "info"},
		{name: "listen", listen: "0.0.0.0:9999", wantListen: "0.0.0.0:9999", wantLevel: "info"},
		{name: "verbose", verbose: true, wantListen: config.DefaultListenAddress, wantLevel: "debug"},
		{name: "log level wins over verbose", verbose: true, logLevel: "warn", wantListen: config.DefaultListenAddress, wantLevel: "warn"},
		{name: "invalid log level", logLevel: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse(nil)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			runFlags.listenAddress = tt.listen
			runFlags.logLevel = tt.logLevel
			verbose = tt.verbose

			err = applyRunOverrides(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyRunOverrides() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg.Server.ListenAddress != tt.wantListen {
				t.Errorf("listen address = %q, want %q", cfg.Server.ListenAddress, tt.wantListen)
			}
			if cfg.Telemetry.Logging.Level != tt.wantLevel {
				t.Errorf("log level = %q, want %q", cfg.Telemetry.Logging.Level, tt.wantLevel)
			}
		})
	}
}

func TestThrottleCheck(t *testing.T) {
	th := throttle.New()
	check := throttleCheck(th)

	if err := check(context.Background()); err != nil {
		t.Errorf("expected default policies to pass, got %v", err)
	}

	if err := th.SetPolicies(map[throttle.Category]throttle.Policy{}); err != nil {
		t.Fatalf("SetPolicies() error = %v", err)
	}
	if err := check(context.Background()); err == nil {
		t.Error("expected empty quota table to fail readiness")
	}
}

func TestServe_ListenErrorStopsEverything(t *testing.T) {
	writeTestConfig(t, testConfig)

	cfg, err := config.Parse([]byte(testConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cfg.Server.ListenAddress = "127.0.0.1:99999"
	cfg.Throttle.Watch = true

	done := make(chan error, 1)
	go func() {
		var out bytes.Buffer
		done <- serve(context.Background(), cfg, logging.Discard(), &out)
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Error("expected listen error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after the listener failed")
	}
}
