package version

import (
	"errors"
	"net/http"
	"testing"
)

func TestCheckToleratesMissingHeaders(t *testing.T) {
	if err := Check(http.Header{}); err != nil {
		t.Errorf("Check with no headers = %v, want nil", err)
	}
}

func TestCheckPassesMatchingVersions(t *testing.T) {
	h := Headers("peek-test/1.0")
	if err := Check(h); err != nil {
		t.Errorf("Check with matching headers = %v, want nil", err)
	}
}

func TestCheckFailsOnMismatch(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderDatastoreVersion, "99")
	err := Check(h)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("Check = %v, want ErrVersionMismatch", err)
	}
}

func TestCheckFailsOnMalformedHeader(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderProtocolVersion, "not-a-number")
	if err := Check(h); err == nil {
		t.Error("Check with malformed header should return an error")
	}
}
