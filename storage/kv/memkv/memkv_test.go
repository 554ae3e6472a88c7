package memkv

import (
	"testing"

	"github.com/trezcool/elimu/storage/kv/kvtest"
)

func TestStore(t *testing.T) {
	kvtest.Run(t, New())
}
