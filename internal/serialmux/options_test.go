package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptions_Normalize(t *testing.T) {
	got, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}
	if got != want {
		t.Errorf("Normalize() = %+v, want %+v", got, want)
	}

	got, err = PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: " even "}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Parity != "E" || got.StopBits != 2 || got.DataBits != 7 || got.BaudRate != 9600 {
		t.Errorf("Normalize() = %+v", got)
	}

	for name, bad := range map[string]PortOptions{
		"data bits": {DataBits: 9},
		"stop bits": {StopBits: 3},
		"parity":    {Parity: "mark"},
	} {
		if _, err := bad.Normalize(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: DefaultBaudRate, Parity: "none"}) {
		t.Error("defaults should equal their explicit form")
	}
	if (PortOptions{BaudRate: 9600}).Equal(PortOptions{}) {
		t.Error("different baud rates should not be equal")
	}
	if (PortOptions{Parity: "x"}).Equal(PortOptions{Parity: "x"}) {
		t.Error("invalid options are never equal")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	tests := []struct {
		opts PortOptions
		want serial.Mode
	}{
		{PortOptions{}, serial.Mode{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: serial.OneStopBit, Parity: serial.NoParity}},
		{PortOptions{StopBits: 2, Parity: "O"}, serial.Mode{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: serial.TwoStopBits, Parity: serial.OddParity}},
		{PortOptions{BaudRate: 19200, Parity: "E"}, serial.Mode{BaudRate: 19200, DataBits: 8, StopBits: serial.OneStopBit, Parity: serial.EvenParity}},
	}
	for _, tt := range tests {
		got, err := tt.opts.SerialMode()
		if err != nil {
			t.Fatalf("SerialMode(%+v): %v", tt.opts, err)
		}
		if got.BaudRate != tt.want.BaudRate || got.DataBits != tt.want.DataBits ||
			got.StopBits != tt.want.StopBits || got.Parity != tt.want.Parity {
			t.Errorf("SerialMode(%+v) = %+v, want %+v", tt.opts, *got, tt.want)
		}
	}

	if _, err := (PortOptions{DataBits: 4}).SerialMode(); err == nil {
		t.Error("expected error for invalid options")
	}
}

func TestNewRealSerialMux_InvalidOptions(t *testing.T) {
	if _, err := NewRealSerialMux("/dev/null", PortOptions{StopBits: 5}); err == nil {
		t.Error("expected error for invalid stop bits")
	}
}
