package main

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/liwanag/screening-server/internal/util"
)

func main() {
	key := uuid.NewString() + uuid.NewString()
	fmt.Printf("API key:  %s\n", key)
	fmt.Printf("Key hash: %s\n", util.HashKey(key))
	fmt.Println("Store the hash in api_keys.key_hash; give the key to the device.")
}
