package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"storefront/internal/domain"
)

func emptyCartState() CartState {
	return CartState{Schema: domain.CartSchemaVersion, Items: []domain.CartLineItem{}}
}

func encodeCartState(s CartState) ([]byte, error) {
	if s.Items == nil {
		s.Items = []domain.CartLineItem{}
	}
	s.Schema = domain.CartSchemaVersion
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

// decodeCartState разбирает документ корзины.
// Голый JSON-массив позиций (формат без тега схемы) читается как версия 0.
func decodeCartState(data []byte) (CartState, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return emptyCartState(), nil
	}

	if trimmed[0] == '[' {
		var items []domain.CartLineItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return emptyCartState(), fmt.Errorf("%w: %v", ErrCorruptState, err)
		}
		s := emptyCartState()
		if items != nil {
			s.Items = items
		}
		return s, nil
	}

	var s CartState
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return emptyCartState(), fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if s.Schema > domain.CartSchemaVersion {
		return emptyCartState(), fmt.Errorf("%w: unsupported schema %d", ErrCorruptState, s.Schema)
	}
	s.Schema = domain.CartSchemaVersion
	if s.Items == nil {
		s.Items = []domain.CartLineItem{}
	}
	return s, nil
}

// storedVersion версия документа для проверки при записи; нечитаемый документ считается версией 0
func storedVersion(data []byte) int64 {
	s, err := decodeCartState(data)
	if err != nil {
		return 0
	}
	return s.Version
}
