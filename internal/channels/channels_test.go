package channels

import "testing"

func TestChannelOrderETAR(t *testing.T) {
	co := NewChannelOrder()
	if err := co.Set(ETAR); err != nil {
		t.Fatalf("Set(ETAR) = %v", err)
	}
	rc := RcData{Ch: [NumChannels]uint16{100, 200, 300, 400}}
	co.Apply(&rc)
	want := [4]uint16{300, 100, 200, 400}
	for i, w := range want {
		if rc.Ch[i] != w {
			t.Errorf("ch[%d] = %d, want %d", i, rc.Ch[i], w)
		}
	}
}

func TestChannelOrderAETRIsIdentity(t *testing.T) {
	co := NewChannelOrder()
	if err := co.Set(AETR); err != nil {
		t.Fatalf("Set(AETR) = %v", err)
	}
	rc := RcData{Ch: [NumChannels]uint16{1, 2, 3, 4}}
	co.Apply(&rc)
	for i, want := range [4]uint16{1, 2, 3, 4} {
		if rc.Ch[i] != want {
			t.Errorf("ch[%d] = %d, want %d", i, rc.Ch[i], want)
		}
	}
}

func TestChannelOrderTAERRefused(t *testing.T) {
	co := NewChannelOrder()
	if err := co.Set(TAER); err != ErrOrderUndefined {
		t.Fatalf("Set(TAER) = %v, want ErrOrderUndefined", err)
	}
}

func TestChannelOrderSetIsIdempotentNoOp(t *testing.T) {
	co := NewChannelOrder()
	if err := co.Set(ETAR); err != nil {
		t.Fatal(err)
	}
	// Re-setting the same order must not error even though TAER-style
	// re-derivation could otherwise be triggered.
	if err := co.Set(ETAR); err != nil {
		t.Fatalf("re-Set(ETAR) = %v", err)
	}
}
