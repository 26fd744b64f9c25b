package registry

import (
	"testing"

	"github.com/arthur-debert/fleetup/pkg/errors"
)

type testStep struct {
	Name string
}

func TestNew(t *testing.T) {
	reg := New[testStep]()

	if reg == nil {
		t.Fatal("New() returned nil")
	}

	if reg.Count() != 0 {
		t.Errorf("New registry should be empty, got count %d", reg.Count())
	}
}

func TestRegister(t *testing.T) {
	reg := New[testStep]()

	t.Run("register valid item", func(t *testing.T) {
		if err := reg.Register("backup", testStep{Name: "backup"}); err != nil {
			t.Fatalf("Register() error = %v, want nil", err)
		}
		if reg.Count() != 1 {
			t.Errorf("Count() = %d, want 1", reg.Count())
		}
	})

	t.Run("register with empty name", func(t *testing.T) {
		err := reg.Register("", testStep{})
		if !errors.IsErrorCode(err, errors.ErrInvalidInput) {
			t.Errorf("Register() with empty name should return ErrInvalidInput, got %v", err)
		}
	})

	t.Run("register duplicate", func(t *testing.T) {
		err := reg.Register("backup", testStep{Name: "other"})
		if !errors.IsErrorCode(err, errors.ErrAlreadyExists) {
			t.Errorf("Register() duplicate should return ErrAlreadyExists, got %v", err)
		}
	})
}

func TestGet(t *testing.T) {
	reg := New[testStep]()
	MustRegister(reg, "build", testStep{Name: "build"})

	got, err := reg.Get("build")
	if err != nil {
		t.Fatalf("Get() error = %v, want nil", err)
	}
	if got.Name != "build" {
		t.Errorf("Get() = %+v", got)
	}

	if _, err := reg.Get("deploy"); !errors.IsErrorCode(err, errors.ErrNotFound) {
		t.Errorf("Get() missing should return ErrNotFound, got %v", err)
	}
}

func TestListSorted(t *testing.T) {
	reg := New[testStep]()
	for _, name := range []string{"restore", "alert", "build"} {
		MustRegister(reg, name, testStep{Name: name})
	}

	got := reg.List()
	want := []string{"alert", "build", "restore"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if !reg.Has("alert") || reg.Has("gc") {
		t.Error("Has() mismatch")
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := New[testStep]()
	MustRegister(reg, "alert", testStep{})

	defer func() {
		if recover() == nil {
			t.Error("MustRegister() duplicate should panic")
		}
	}()
	MustRegister(reg, "alert", testStep{})
}

func TestMissing(t *testing.T) {
	reg := New[testStep]()
	MustRegister(reg, "backup", testStep{Name: "backup"})
	MustRegister(reg, "restore", testStep{Name: "restore"})

	if got := reg.Missing("backup", "restore"); len(got) != 0 {
		t.Errorf("Missing() = %v, want none", got)
	}

	got := reg.Missing("build", "backup", "alert", "build")
	want := []string{"build", "alert"}
	if len(got) != len(want) {
		t.Fatalf("Missing() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Missing()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
