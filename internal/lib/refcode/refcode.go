// Package refcode генерирует короткие референс-коды платежей.
// Код вида GYM-XXXXXX набирается вручную в назначении банковского
// платежа, поэтому алфавит без похожих символов (0/O, 1/I/L).
// Уникальность обеспечивает ограничение в хранилище; при коллизии
// вызывающий код генерирует новый.
package refcode

import (
	"crypto/rand"
	"fmt"
)

const (
	prefix   = "GYM-"
	length   = 6
	alphabet = "ABCDEFGHJKMNPQRSTVWXYZ23456789"
)

// New возвращает новый случайный референс-код.
func New() (string, error) {
	const op = "refcode.New"

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return prefix + string(buf), nil
}
