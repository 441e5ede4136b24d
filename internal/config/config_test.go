package config

import "testing"

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	if !c.Validate() {
		t.Error("Default() config should be valid")
	}
}

func TestValidate_RejectsNonPositiveBufferSize(t *testing.T) {
	c := Default()
	c.BufferSize = 0
	if c.Validate() {
		t.Error("BufferSize=0 should be invalid")
	}
	c.BufferSize = -1
	if c.Validate() {
		t.Error("negative BufferSize should be invalid")
	}
}

func TestValidate_RejectsOversizedBufferSize(t *testing.T) {
	c := Default()
	c.BufferSize = MaxBufferSize + 1
	if c.Validate() {
		t.Error("BufferSize above MaxBufferSize should be invalid")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TELEMETRY_BUFFER_SIZE", "8192")
	t.Setenv("TELEMETRY_TARGET_PID", "4242")
	t.Setenv("TELEMETRY_LOG_LEVEL", "1")

	c := FromEnv()
	if c.BufferSize != 8192 {
		t.Errorf("BufferSize = %d, want 8192", c.BufferSize)
	}
	if c.TargetPID != 4242 {
		t.Errorf("TargetPID = %d, want 4242", c.TargetPID)
	}
}

func TestFromEnv_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("TELEMETRY_BUFFER_SIZE", "not-a-number")
	c := FromEnv()
	if c.BufferSize != DefaultBufferSize {
		t.Errorf("BufferSize = %d, want default %d on malformed env", c.BufferSize, DefaultBufferSize)
	}
}
