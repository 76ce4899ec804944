package reactor

import (
	"os"
	"testing"
	"time"
)

func TestRegisterAndReadableDispatch(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer loop.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	fired := make(chan struct{}, 1)
	err = loop.Register(int(r.Fd()), Callbacks{
		OnReadable: func(fd int) {
			buf := make([]byte, 16)
			n, _ := r.Read(buf)
			if n > 0 {
				fired <- struct{}{}
			}
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte("hi"))
	}()

	go func() {
		loop.Run()
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("readable callback never fired")
	}
}

func TestUnregisterStopsDispatch(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer loop.Close()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if err := loop.Register(int(r.Fd()), Callbacks{OnReadable: func(fd int) {}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := loop.Unregister(int(r.Fd())); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if _, ok := loop.cbs[int(r.Fd())]; ok {
		t.Fatalf("expected fd removed from callback table after Unregister")
	}
}
