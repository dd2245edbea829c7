package memory_test

import (
	"testing"

	"github.com/quantfold/tessera/pkg/adapters/memory"
	contract "github.com/quantfold/tessera/pkg/ports/tests"
)

func TestOwnershipStore_Contract(t *testing.T) {
	contract.RunOwnershipStoreContract(t, memory.NewOwnershipStore())
}

func TestCacheStore_Contract(t *testing.T) {
	contract.RunCacheStoreContract(t, memory.NewCacheStore())
}
