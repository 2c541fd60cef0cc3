package utils

import "testing"

func TestTrackingTokenRoundtrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateTrackingToken(42)
	if err != nil {
		t.Fatalf("GenerateTrackingToken вернул ошибку: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken вернул ошибку: %v", err)
	}
	if claims.JourneyID != 42 {
		t.Errorf("JourneyID = %d, ожидалось 42", claims.JourneyID)
	}
	if claims.Role != "tracking" {
		t.Errorf("Role = %q, ожидалось tracking", claims.Role)
	}
}

func TestDispatcherTokenRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateDispatcherJWT()
	if err != nil {
		t.Fatalf("GenerateDispatcherJWT вернул ошибку: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken вернул ошибку: %v", err)
	}
	if claims.Role != "dispatcher" {
		t.Errorf("Role = %q, ожидалось dispatcher", claims.Role)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, err := GenerateTrackingToken(42)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("JWT_SECRET", "другой-секрет")
	if _, err := ValidateToken(token); err == nil {
		t.Error("токен с чужой подписью прошел проверку")
	}
}
