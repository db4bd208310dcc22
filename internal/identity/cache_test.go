package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bigkaa/fileattach/internal/domain/model"
)

// countingVerifier считает обращения и возвращает заданный результат.
type countingVerifier struct {
	calls int
	id    *model.Identity
	err   error
}

func (c *countingVerifier) Verify(context.Context, string) (*model.Identity, error) {
	c.calls++
	return c.id, c.err
}

// TestCachedVerifier_CachesSuccess проверяет, что успешная проверка кэшируется.
func TestCachedVerifier_CachesSuccess(t *testing.T) {
	next := &countingVerifier{id: &model.Identity{ID: "user-1"}}
	v := NewCachedVerifier(next, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := v.Verify(ctx, "token-a")
		if err != nil {
			t.Fatalf("Verify() вернул ошибку: %v", err)
		}
		if id.ID != "user-1" {
			t.Errorf("ID = %q, ожидался user-1", id.ID)
		}
	}
	if next.calls != 1 {
		t.Errorf("вызовов next = %d, ожидался 1", next.calls)
	}

	// Другой токен — отдельная запись
	if _, err := v.Verify(ctx, "token-b"); err != nil {
		t.Fatalf("Verify() вернул ошибку: %v", err)
	}
	if next.calls != 2 {
		t.Errorf("вызовов next = %d, ожидалось 2", next.calls)
	}
	if v.Len() != 2 {
		t.Errorf("Len() = %d, ожидалось 2", v.Len())
	}
}

// TestCachedVerifier_DoesNotCacheFailure проверяет, что отказы не кэшируются.
func TestCachedVerifier_DoesNotCacheFailure(t *testing.T) {
	next := &countingVerifier{err: ErrInvalidCredential}
	v := NewCachedVerifier(next, 10, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := v.Verify(context.Background(), "bad"); !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("ожидалась ErrInvalidCredential, получена %v", err)
		}
	}
	if next.calls != 2 {
		t.Errorf("вызовов next = %d, ожидалось 2", next.calls)
	}
	if v.Len() != 0 {
		t.Errorf("Len() = %d, ожидался пустой кэш", v.Len())
	}
}

// TestCachedVerifier_TTLExpiry проверяет истечение записи.
func TestCachedVerifier_TTLExpiry(t *testing.T) {
	next := &countingVerifier{id: &model.Identity{ID: "user-1"}}
	v := NewCachedVerifier(next, 10, 50*time.Millisecond)
	ctx := context.Background()

	_, _ = v.Verify(ctx, "token")
	time.Sleep(100 * time.Millisecond)
	_, _ = v.Verify(ctx, "token")

	if next.calls != 2 {
		t.Errorf("вызовов next = %d, ожидалось 2 после истечения TTL", next.calls)
	}
}

// TestCachedVerifier_TokenExpiryBoundsEntry проверяет, что запись не переживает exp токена.
func TestCachedVerifier_TokenExpiryBoundsEntry(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := start
	next := &countingVerifier{id: &model.Identity{ID: "user-1", ExpiresAt: start.Add(time.Second)}}
	v := NewCachedVerifier(next, 10, 30*time.Second)
	v.now = func() time.Time { return clock }
	ctx := context.Background()

	_, _ = v.Verify(ctx, "token")
	clock = start.Add(500 * time.Millisecond)
	_, _ = v.Verify(ctx, "token")
	if next.calls != 1 {
		t.Fatalf("вызовов next = %d, ожидался 1 до истечения exp", next.calls)
	}

	// exp прошёл, TTL кэша ещё нет: проверка снова уходит в next
	clock = start.Add(2 * time.Second)
	next.id = nil
	next.err = ErrInvalidCredential
	if _, err := v.Verify(ctx, "token"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("ожидалась ErrInvalidCredential для истёкшего токена, получена %v", err)
	}
	if next.calls != 2 {
		t.Errorf("вызовов next = %d, ожидалось 2", next.calls)
	}
	if v.Len() != 0 {
		t.Errorf("Len() = %d, истёкшая запись должна быть удалена", v.Len())
	}
}

// TestCachedVerifier_ExpiredIdentityNotCached проверяет, что уже истёкший токен не кэшируется.
func TestCachedVerifier_ExpiredIdentityNotCached(t *testing.T) {
	next := &countingVerifier{id: &model.Identity{ID: "user-1", ExpiresAt: time.Now().Add(-time.Second)}}
	v := NewCachedVerifier(next, 10, time.Minute)

	_, _ = v.Verify(context.Background(), "token")
	if v.Len() != 0 {
		t.Errorf("Len() = %d, ожидался пустой кэш", v.Len())
	}
}

// TestCachedVerifier_JWKSExpiredToken проверяет отказ кэшированному JWT после его exp.
func TestCachedVerifier_JWKSExpiredToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	v := NewCachedVerifier(newTestJWKSVerifier(t, key, ""), 10, 30*time.Second)

	claims := validClaims("u1")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(2 * time.Second))
	token := generateTestToken(t, key, claims)

	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Fatalf("Verify() вернул ошибку для действующего токена: %v", err)
	}

	time.Sleep(2500 * time.Millisecond)

	if id, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("истёкший токен принят из кэша: id=%+v err=%v", id, err)
	}
}

func TestCachedVerifier_MissingToken(t *testing.T) {
	next := &countingVerifier{}
	v := NewCachedVerifier(next, 10, time.Minute)

	if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrMissingCredential) {
		t.Errorf("ожидалась ErrMissingCredential, получена %v", err)
	}
	if next.calls != 0 {
		t.Error("пустой токен не должен доходить до next")
	}
}
