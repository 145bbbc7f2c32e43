package shade

import (
	"errors"
	"sync"
	"testing"

	"github.com/muurk/powerview-ble/internal/link"
	"github.com/muurk/powerview-ble/internal/protocol"
)

type linkRecorder struct {
	mu    sync.Mutex
	links map[string]*fakeLink
}

func (r *linkRecorder) factory(address string) link.Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links == nil {
		r.links = make(map[string]*fakeLink)
	}
	l := newFakeLink(address)
	r.links[address] = l
	return l
}

func newTestManager(t *testing.T, opts ManagerOptions) (*Manager, *linkRecorder) {
	t.Helper()
	rec := &linkRecorder{}
	m, err := NewManager(rec.factory, opts)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(m.Shutdown)
	return m, rec
}

func advert(address string, homeID uint16) link.Advertisement {
	return link.Advertisement{
		Address:          address,
		LocalName:        "DUE:" + address,
		RSSI:             -60,
		ManufacturerData: map[uint16][]byte{protocol.ManufacturerID: record(homeID, 25, protocol.MotionIdle, 2)},
	}
}

func TestNewManagerKeyLength(t *testing.T) {
	if _, err := NewManager(nil, ManagerOptions{HomeKey: []byte{1}}); err == nil {
		t.Error("NewManager() with 1-byte key error = nil")
	}
}

func TestRegisterOnePerAddress(t *testing.T) {
	m, rec := newTestManager(t, ManagerOptions{})

	a, err := m.Register("aa:bb:cc:dd:ee:ff", Registration{Name: "Kitchen"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Register("AA:BB:CC:DD:EE:FF", Registration{Name: "Other", Encrypted: true})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second registration created a new shade")
	}
	if b.Name() != "Kitchen" || b.Encrypted() {
		t.Errorf("shade = %s encrypted=%v, want first registration to win", b.Name(), b.Encrypted())
	}
	if len(rec.links) != 1 {
		t.Errorf("created %d links, want 1", len(rec.links))
	}
}

func TestRegisterDerivesEncryption(t *testing.T) {
	tests := []struct {
		name   string
		reg    Registration
		want   bool
		wantNm string
	}{
		{"explicit flag", Registration{Encrypted: true}, true, "11:22"},
		{"paired advertisement", Registration{Advertisement: ptr(advert("11:22", 0x0042))}, true, "DUE:11:22"},
		{"unpaired advertisement", Registration{Advertisement: ptr(advert("11:22", 0))}, false, "DUE:11:22"},
		{"nothing known", Registration{}, false, "11:22"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, ManagerOptions{HomeKey: testHomeKey})
			s, err := m.Register("11:22", tt.reg)
			if err != nil {
				t.Fatal(err)
			}
			if s.Encrypted() != tt.want {
				t.Errorf("Encrypted() = %v, want %v", s.Encrypted(), tt.want)
			}
			if s.Name() != tt.wantNm {
				t.Errorf("Name() = %q, want %q", s.Name(), tt.wantNm)
			}
			if tt.reg.Advertisement != nil {
				if _, ok := s.Telemetry(); !ok {
					t.Error("telemetry not seeded from the advertisement")
				}
			}
		})
	}
}

func TestGetUnknown(t *testing.T) {
	m, _ := newTestManager(t, ManagerOptions{})
	if _, err := m.Get("00:00"); !errors.Is(err, ErrUnknownShade) {
		t.Errorf("Get() error = %v, want ErrUnknownShade", err)
	}
}

func TestHandleAdvertisementRouting(t *testing.T) {
	tests := []struct {
		name         string
		autoRegister bool
		wantShades   int
		wantEvents   int
	}{
		{"ignore unknown", false, 1, 1},
		{"auto register", true, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, ManagerOptions{AutoRegister: tt.autoRegister})
			if _, err := m.Register("AA", Registration{}); err != nil {
				t.Fatal(err)
			}

			var events []string
			m.OnTelemetry(func(s *Shade, tel *protocol.Telemetry) {
				events = append(events, s.Address())
			})

			m.HandleAdvertisement(advert("aa", 0))
			m.HandleAdvertisement(advert("bb", 0x0101))
			m.HandleAdvertisement(link.Advertisement{Address: "cc", ManufacturerData: map[uint16][]byte{0x004C: {1}}})

			if n := len(m.Shades()); n != tt.wantShades {
				t.Errorf("len(Shades()) = %d, want %d", n, tt.wantShades)
			}
			if len(events) != tt.wantEvents {
				t.Errorf("events = %v, want %d", events, tt.wantEvents)
			}
			s, _ := m.Get("AA")
			if tel, ok := s.Telemetry(); !ok || tel.Position != 25 {
				t.Errorf("AA telemetry = %+v, %v", tel, ok)
			}
			if tt.autoRegister {
				bb, err := m.Get("BB")
				if err != nil || !bb.Encrypted() {
					t.Errorf("BB = %v, %v; want registered and encrypted", bb, err)
				}
			}
		})
	}
}

func TestShadesSorted(t *testing.T) {
	m, _ := newTestManager(t, ManagerOptions{})
	for _, a := range []string{"cc", "aa", "bb"} {
		if _, err := m.Register(a, Registration{}); err != nil {
			t.Fatal(err)
		}
	}
	shades := m.Shades()
	for i, want := range []string{"AA", "BB", "CC"} {
		if shades[i].Address() != want {
			t.Errorf("Shades()[%d] = %s, want %s", i, shades[i].Address(), want)
		}
	}
}

func ptr[T any](v T) *T { return &v }
