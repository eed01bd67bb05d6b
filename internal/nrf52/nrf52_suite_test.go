package nrf52_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestNrf52(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "nrf52 Suite")
}
