package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if c.SampleRate != 48000 || c.BlockSize != 512 {
		t.Errorf("unexpected defaults: %+v", c)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	body := "sample_rate: 44100\nblock_size: 256\npdc:\n  constrain_enabled: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if c.SampleRate != 44100 || c.BlockSize != 256 {
		t.Errorf("overrides lost: %+v", c)
	}
	if !c.Pdc.ConstrainEnabled {
		t.Error("nested override lost")
	}
	// Untouched fields keep defaults.
	if c.Voices.MaxOneShot != 32 {
		t.Error("defaults should survive partial configs")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("block_size: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("invalid block size should fail validation")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent.yaml"); err == nil {
		t.Fatal("missing file should error")
	}
}

func TestValidateRingCapacity(t *testing.T) {
	c := Default()
	c.CommandRingCapacity = 300
	if err := c.Validate(); err == nil {
		t.Error("non-power-of-two ring should fail")
	}
	c.CommandRingCapacity = 128
	if err := c.Validate(); err == nil {
		t.Error("undersized ring should fail")
	}
	c.CommandRingCapacity = 512
	if err := c.Validate(); err != nil {
		t.Errorf("512 should validate: %v", err)
	}
}
