package indexcmder

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIndexCmd(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Index Command Suite")
}
