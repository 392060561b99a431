package stdf

import "fmt"

var testFlagBits = [8]string{
	"Alarm detected during testing",
	"The value in the RESULT field is not valid",
	"Test result is unreliable",
	"Timeout occurred",
	"Test not executed",
	"Test aborted",
	"Test completed with no pass/fail indication",
	"Test failed",
}

var dutFlagBits = [5]string{
	"Supersedes any previous information for the same PART_ID",
	"Supersedes any previous information for the same X/Y coordinates",
	"Abnormal end of testing",
	"Part failed",
	"No pass/fail indication",
}

var returnStates = [...]string{
	"0 or low",
	"1 or high",
	"Midband",
	"Glitch",
	"Undetermined",
	"Failed low",
	"Failed high",
	"Failed midband",
	"Failed with a glitch",
	"Open",
	"Short",
}

// TestFlagInfo describes the bits set in a TEST_FLG value.
func TestFlagInfo(flag TestFlag) []string {
	if flag < 0 {
		return []string{"Not tested"}
	}
	if flag == 0 {
		return []string{"Test passed"}
	}

	var out []string
	for bit, desc := range testFlagBits {
		if flag&(1<<bit) != 0 {
			out = append(out, desc)
		}
	}

	return out
}

// DUTFlagInfo describes the bits set in a PRR PART_FLG value.
func DUTFlagInfo(flag uint8) []string {
	var out []string
	for bit, desc := range dutFlagBits {
		if flag&(1<<bit) != 0 {
			out = append(out, desc)
		}
	}
	if flag&0b00011000 == 0 {
		out = append(out, "Part passed")
	}

	return out
}

// ReturnStateInfo describes an MPR RTN_STAT nibble.
func ReturnStateInfo(state int) string {
	if state < 0 {
		return "Not tested"
	}
	if state < len(returnStates) {
		return returnStates[state]
	}

	return fmt.Sprintf("Reserved state %d", state)
}
