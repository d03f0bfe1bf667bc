package session

import (
	"context"
	"errors"
	"testing"
)

type fakeDriver struct {
	logins int
	fails  int
	live   bool
}

func (f *fakeDriver) Login(ctx context.Context, creds Credentials) error {
	f.logins++
	if f.fails > 0 {
		f.fails--
		return errors.New("landmark never appeared")
	}
	f.live = true
	return nil
}

func (f *fakeDriver) Alive(ctx context.Context) bool { return f.live }

func creds() Credentials {
	return Credentials{AccountID: "100012345", Password: "s3cret"}
}

func TestValidateRejectsPlaceholder(t *testing.T) {
	c := Credentials{AccountID: "100012345", Password: Placeholder}
	if err := c.Validate(); err == nil {
		t.Fatal("placeholder password must not validate")
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	if err := (Credentials{}).Validate(); err == nil {
		t.Fatal("empty credentials must not validate")
	}
	if err := (Credentials{AccountID: "x"}).Validate(); err == nil {
		t.Fatal("empty password must not validate")
	}
}

func TestNewManagerRejectsBadCredentials(t *testing.T) {
	_, err := NewManager(&fakeDriver{}, Credentials{AccountID: "x", Password: Placeholder}, nil)
	if err == nil {
		t.Fatal("NewManager must refuse placeholder credentials")
	}
}

func TestLoginIncrementsEpoch(t *testing.T) {
	m, err := NewManager(&fakeDriver{}, creds(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if m.Epoch() != 0 {
		t.Fatalf("epoch = %d before login, want 0", m.Epoch())
	}

	if err := m.Login(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.Epoch() != 1 {
		t.Fatalf("epoch = %d after login, want 1", m.Epoch())
	}
}

func TestRecoverIncrementsEpoch(t *testing.T) {
	m, _ := NewManager(&fakeDriver{}, creds(), nil)
	ctx := context.Background()

	if err := m.Login(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Recover(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Epoch() != 2 {
		t.Fatalf("epoch = %d after recover, want 2", m.Epoch())
	}
}

func TestFailedLoginKeepsEpoch(t *testing.T) {
	d := &fakeDriver{fails: 1}
	m, _ := NewManager(d, creds(), nil)
	ctx := context.Background()

	err := m.Login(ctx)
	var authErr *ErrAuthentication
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want ErrAuthentication", err)
	}
	if m.Epoch() != 0 {
		t.Fatalf("epoch = %d after failed login, want 0", m.Epoch())
	}
	if m.Alive(ctx) {
		t.Fatal("failed login must not report alive")
	}

	// Recovery after the transient rejection re-authenticates and lands
	// on a fresh epoch.
	if err := m.Recover(ctx); err != nil {
		t.Fatal(err)
	}
	if m.Epoch() != 1 {
		t.Fatalf("epoch = %d after recovery, want 1", m.Epoch())
	}
	if d.logins != 2 {
		t.Fatalf("driver logins = %d, want 2", d.logins)
	}
}

func TestAliveConsultsProber(t *testing.T) {
	d := &fakeDriver{}
	m, _ := NewManager(d, creds(), nil)
	ctx := context.Background()

	if m.Alive(ctx) {
		t.Fatal("never-logged-in session must not be alive")
	}

	if err := m.Login(ctx); err != nil {
		t.Fatal(err)
	}
	if !m.Alive(ctx) {
		t.Fatal("expected alive after login")
	}

	d.live = false
	if m.Alive(ctx) {
		t.Fatal("prober says dead, Alive must agree")
	}
}
