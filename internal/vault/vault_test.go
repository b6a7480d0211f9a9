package vault

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// TestMain verifies no test leaves a bridge's sweep-loop goroutine
// running past the test that started it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInitUnlockAddResolveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	if err := Init(path, "correct horse battery staple"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	v, err := Unlock(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := v.Add("LINAGORA", "s3cret"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	value, ok, err := v.Resolve("LINAGORA")
	if err != nil || !ok {
		t.Fatalf("Resolve: value=%q ok=%v err=%v", value, ok, err)
	}
	if value != "s3cret" {
		t.Errorf("value = %q, want s3cret", value)
	}
}

func TestUnlockWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	if err := Init(path, "correct"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := Unlock(path, "incorrect"); err != ErrWrongPassphrase {
		t.Fatalf("err = %v, want ErrWrongPassphrase", err)
	}
}

func TestListNeverExposesCiphertext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	_ = Init(path, "pw")
	v, _ := Unlock(path, "pw")
	_, _ = v.Add("X", "secretvalue")

	for _, c := range v.List() {
		if c.CipherText != nil {
			t.Errorf("List leaked ciphertext for %s", c.Alias)
		}
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	k1 := deriveKey("password", salt)
	k2 := deriveKey("password", salt)
	if string(k1) != string(k2) {
		t.Error("deriveKey is not deterministic for identical inputs")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	ct, err := encrypt(key, []byte("hello"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	pt, err := decrypt(key, ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(pt) != "hello" {
		t.Errorf("pt = %q, want hello", pt)
	}
}

func TestCacheWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	devicePath := filepath.Join(dir, "devicekey")
	cachePath := filepath.Join(dir, "cache.enc")

	deviceKey, err := DeviceKey(devicePath)
	if err != nil {
		t.Fatalf("DeviceKey: %v", err)
	}
	derivedKey := make([]byte, 32)
	copy(derivedKey, []byte("0123456789abcdef0123456789abcde"))

	if err := CacheWrite(cachePath, deviceKey, derivedKey); err != nil {
		t.Fatalf("CacheWrite: %v", err)
	}
	got, ok := CacheRead(cachePath, deviceKey)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != string(derivedKey) {
		t.Error("round-tripped key differs")
	}
}

func TestCacheReadMissOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.enc")
	devicePath := filepath.Join(dir, "devicekey")
	deviceKey, _ := DeviceKey(devicePath)

	if err := os.WriteFile(cachePath, []byte("not json"), 0o600); err != nil {
		t.Fatalf("write corrupt cache: %v", err)
	}
	if _, ok := CacheRead(cachePath, deviceKey); ok {
		t.Error("expected miss on corrupt cache file")
	}
}

func TestUnlockPopulatesCacheAndUnlockCachedSkipsPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")
	if err := Init(path, "pw"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if _, err := Unlock(path, "pw"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	v, ok := UnlockCached(path)
	if !ok {
		t.Fatal("expected UnlockCached to hit after Unlock populated the cache")
	}
	if _, err := v.Add("X", "secretvalue"); err != nil {
		t.Fatalf("Add via cached unlock: %v", err)
	}
	value, found, err := v.Resolve("X")
	if err != nil || !found || value != "secretvalue" {
		t.Fatalf("Resolve via cached unlock: value=%q found=%v err=%v", value, found, err)
	}
}

func TestUnlockCachedMissWithoutPriorUnlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vault.json")
	if err := Init(path, "pw"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, ok := UnlockCached(path); ok {
		t.Error("expected a cache miss before any Unlock has populated it")
	}
}

func TestBridgeTokenSingleUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	_ = Init(path, "pw")
	v, _ := Unlock(path, "pw")
	_, _ = v.Add("LINAGORA", "s3cret")

	bridge := NewBridge(v, "127.0.0.1:19876")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := bridge.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer bridge.Stop(context.Background())
	time.Sleep(50 * time.Millisecond)

	token, err := bridge.GenerateToken("LINAGORA", 5*time.Second)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	url := fmt.Sprintf("http://127.0.0.1:19876/credential")
	req1, _ := http.NewRequest(http.MethodGet, url, nil)
	req1.Header.Set("Authorization", "Bearer "+token)
	resp1, err := http.DefaultClient.Do(req1)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusOK {
		t.Errorf("first status = %d, want 200", resp1.StatusCode)
	}

	req2, _ := http.NewRequest(http.MethodGet, url, nil)
	req2.Header.Set("Authorization", "Bearer "+token)
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Errorf("second status = %d, want 401 (single use)", resp2.StatusCode)
	}
}
