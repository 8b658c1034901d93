package errs_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/hvision/pkg/errs"
)

var _ = Describe("IsRecoverable", func() {
	It("treats wrapped decode errors as recoverable", func() {
		err := fmt.Errorf("record 3: %w", errs.ErrRecordDecode)
		Expect(errs.IsRecoverable(err)).To(BeTrue())
	})

	It("treats every other class as fatal", func() {
		for _, err := range []error{
			errs.ErrConfiguration,
			errs.ErrResourceUnavailable,
			errs.ErrInsufficientTrainingData,
			fmt.Errorf("vocabulary: %w", errs.ErrResourceUnavailable),
		} {
			Expect(errs.IsRecoverable(err)).To(BeFalse())
		}
	})

	It("ignores nil", func() {
		Expect(errs.IsRecoverable(nil)).To(BeFalse())
	})
})
