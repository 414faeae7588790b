package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinMissionTitleLength  = 1
	MaxMissionTitleLength  = 100
	MaxDisputeReasonLength = 1000
	MaxBankNameLength      = 30
	MaxAccountHolderLength = 50
	MinAccountNumberDigits = 10
	MaxAccountNumberDigits = 16
	MaxPaymentKeyLength    = 200
	MaxMissionAmount       = 100_000_000 // 100 млн вон
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s은(는) %d자 이상이어야 합니다.", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s은(는) %d자 이하여야 합니다.", fieldName, max)
	}
	return nil
}

// ValidateMissionTitle проверяет название миссии.
func ValidateMissionTitle(title string) error {
	return ValidateLength("미션 제목", strings.TrimSpace(title), MinMissionTitleLength, MaxMissionTitleLength)
}

// ValidateMissionAmount проверяет стоимость товара или гонорар ревьюера в вонах.
func ValidateMissionAmount(fieldName string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%s은(는) 0 이상이어야 합니다.", fieldName)
	}
	if amount > MaxMissionAmount {
		return fmt.Errorf("%s은(는) %d원 이하여야 합니다.", fieldName, MaxMissionAmount)
	}
	return nil
}

// ValidateDisputeReason проверяет причину спора по отзыву.
func ValidateDisputeReason(reason string) error {
	return ValidateLength("이의 제기 사유", strings.TrimSpace(reason), 1, MaxDisputeReasonLength)
}

// ValidatePaymentKey проверяет ключ платежа Toss: непустой, без пробелов внутри.
func ValidatePaymentKey(key string) error {
	if err := ValidateLength("결제 키", key, 1, MaxPaymentKeyLength); err != nil {
		return err
	}
	if strings.IndexFunc(key, unicode.IsSpace) >= 0 {
		return fmt.Errorf("결제 키 형식이 올바르지 않습니다.")
	}
	return nil
}

// ValidateAccountNumber проверяет номер счёта: цифры и дефисы, от 10 до 16 цифр.
func ValidateAccountNumber(number string) error {
	digits := 0
	for _, r := range number {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '-':
		default:
			return fmt.Errorf("계좌번호는 숫자와 '-'만 입력할 수 있습니다.")
		}
	}
	if digits < MinAccountNumberDigits || digits > MaxAccountNumberDigits {
		return fmt.Errorf("계좌번호는 %d~%d자리 숫자여야 합니다.", MinAccountNumberDigits, MaxAccountNumberDigits)
	}
	return nil
}

// ValidateBankAccount проверяет реквизиты счёта целиком. Пустые поля проверяются раньше.
func ValidateBankAccount(bankName, accountNumber, accountHolder string) error {
	if err := ValidateLength("은행명", bankName, 1, MaxBankNameLength); err != nil {
		return err
	}
	if err := ValidateAccountNumber(accountNumber); err != nil {
		return err
	}
	return ValidateLength("예금주", accountHolder, 1, MaxAccountHolderLength)
}
