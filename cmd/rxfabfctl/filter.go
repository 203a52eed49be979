package main

import (
	"github.com/NVIDIA/rxfabric/group"
	"github.com/NVIDIA/rxfabric/xprogram"
)

func newEtherTypeFilter(allow []uint16) group.Filter {
	return xprogram.NewEtherTypeFilter(allow...)
}
