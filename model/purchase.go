package model

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// GenerateContextID returns a random, non-zero correlation id. Zero is
// reserved to mean "no session".
func GenerateContextID() (uint64, error) {
	for {
		id, err := uuid.NewRandom()
		if err != nil {
			return 0, err
		}

		if v := binary.BigEndian.Uint64(id[:8]); v != 0 {
			return v, nil
		}
	}
}

func MustGenerateContextID() uint64 {
	id, err := GenerateContextID()
	if err != nil {
		panic(fmt.Sprintf("failed to generate context id: %v", err))
	}

	return id
}

func ContextIDString(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func GeneratePurchaseToken() (string, error) {
	a, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	return base58.Encode(a[:]) + "." + base58.Encode(b[:]), nil
}

func MustGeneratePurchaseToken() string {
	token, err := GeneratePurchaseToken()
	if err != nil {
		panic(fmt.Sprintf("failed to generate purchase token: %v", err))
	}

	return token
}

// GenerateOrderID returns an id in the GPA.dddd-dddd-dddd-ddddd shape used by
// Play order ids.
func GenerateOrderID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("GPA.%04d-%04d-%04d-%05d",
		binary.BigEndian.Uint16(id[0:2])%10000,
		binary.BigEndian.Uint16(id[2:4])%10000,
		binary.BigEndian.Uint16(id[4:6])%10000,
		binary.BigEndian.Uint32(id[6:10])%100000,
	), nil
}

func MustGenerateOrderID() string {
	id, err := GenerateOrderID()
	if err != nil {
		panic(fmt.Sprintf("failed to generate order id: %v", err))
	}

	return id
}
