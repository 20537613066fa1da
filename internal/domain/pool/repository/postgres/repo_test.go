package postgres

import (
	"testing"

	"github.com/Conte777/ScraperPool/internal/domain/pool/entities"
	"github.com/Conte777/ScraperPool/internal/infrastructure/crypto"
)

func TestToEntity_Telegram(t *testing.T) {
	model := &entities.WorkerAccountModel{
		ID:         "tg-1",
		UserAPIKey: "user-key",
		Platform:   "telegram",
		Status:     "active",
		IsActive:   true,
		APIID:      12345,
		APIHash:    "hash",
		Phone:      "+1234567890",
	}

	account, err := toEntity(model, crypto.NewCipher(""))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if account.Platform != entities.PlatformTelegram || !account.Selectable() {
		t.Errorf("Unexpected account: %+v", account)
	}
	if account.Telegram == nil || account.Telegram.APIID != 12345 {
		t.Fatalf("Expected telegram credentials, got %+v", account.Telegram)
	}
	if account.Telegram.SessionRef != "tg-1" {
		t.Errorf("Expected session ref to default to account id, got %q", account.Telegram.SessionRef)
	}
}

func TestToEntity_DecryptsVKToken(t *testing.T) {
	cipher := crypto.NewCipher("key")
	encrypted, err := cipher.Encrypt("vk-token")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	account, err := toEntity(&entities.WorkerAccountModel{ID: "vk-1", Platform: "vk", Token: encrypted}, cipher)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if account.VK == nil || account.VK.Token != "vk-token" {
		t.Errorf("Expected decrypted token, got %+v", account.VK)
	}
}

func TestToEntity_InstagramCookies(t *testing.T) {
	model := &entities.WorkerAccountModel{
		ID:       "ig-1",
		Platform: "instagram",
		Login:    "scraper",
		Password: "pw",
		Cookies:  `{"sessionid":"abc","csrftoken":"def"}`,
	}

	account, err := toEntity(model, crypto.NewCipher(""))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if account.Instagram.Cookies["sessionid"] != "abc" {
		t.Errorf("Expected sessionid cookie, got %v", account.Instagram.Cookies)
	}
}

func TestToEntity_Errors(t *testing.T) {
	if _, err := toEntity(&entities.WorkerAccountModel{ID: "x", Platform: "myspace"}, crypto.NewCipher("")); err == nil {
		t.Error("Expected error for unknown platform")
	}

	encrypted, _ := crypto.NewCipher("key").Encrypt("token")
	if _, err := toEntity(&entities.WorkerAccountModel{ID: "x", Platform: "vk", Token: encrypted}, crypto.NewCipher("")); err == nil {
		t.Error("Expected error for encrypted token without key")
	}

	if _, err := toEntity(&entities.WorkerAccountModel{ID: "x", Platform: "instagram", Cookies: "{broken"}, crypto.NewCipher("")); err == nil {
		t.Error("Expected error for malformed cookies")
	}
}
