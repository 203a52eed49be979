/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestEndToEnd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "rxfabric end-to-end suite")
}
