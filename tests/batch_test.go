package tests_test

import (
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"

	"github.com/farcloser/cochlea/tests/testutils"
)

func TestBatchCLI(t *testing.T) {
	testCase := testutils.SetupBatch()

	testCase.SubTests = []*test.Case{
		{
			Description: "report without arguments fails",
			Command:     test.Command("report"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "report on missing directories fails",
			Command:     test.Command("report", "/nonexistent/reference", "/nonexistent/degraded"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "digest without arguments fails",
			Command:     test.Command("digest"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
		{
			Description: "digest of a missing report fails",
			Command:     test.Command("digest", "/nonexistent/cochlea-report.jsonl"),
			Expected:    test.Expects(expect.ExitCodeGenericFail, nil, nil),
		},
	}

	testCase.Run(t)
}
