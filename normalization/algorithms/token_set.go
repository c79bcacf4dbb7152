package algorithms

import (
	"sort"
	"strings"
)

// TokenSetRatio scores two strings as unordered sets of whitespace separated
// words on a 0..100 scale. When one word set contains the other the score is
// 100. Otherwise the score is the best of three Indel ratios: the sorted
// differences against each other, and the common part against the common part
// extended with either difference.
//
// Inputs are compared as given; callers lower-case them first.
func TokenSetRatio(s1, s2 string) float64 {
	tokensA := tokenSet(s1)
	tokensB := tokenSet(s2)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	var intersect, diffAB, diffBA []string
	for t := range tokensA {
		if tokensB[t] {
			intersect = append(intersect, t)
		} else {
			diffAB = append(diffAB, t)
		}
	}
	for t := range tokensB {
		if !tokensA[t] {
			diffBA = append(diffBA, t)
		}
	}

	if len(intersect) > 0 && (len(diffAB) == 0 || len(diffBA) == 0) {
		return 100
	}

	sort.Strings(intersect)
	sort.Strings(diffAB)
	sort.Strings(diffBA)

	diffABJoined := strings.Join(diffAB, " ")
	diffBAJoined := strings.Join(diffBA, " ")
	abLen := runeLen(diffABJoined)
	baLen := runeLen(diffBAJoined)
	sectLen := runeLen(strings.Join(intersect, " "))

	sep := 0
	if sectLen != 0 {
		sep = 1
	}
	sectABLen := sectLen + sep + abLen
	sectBALen := sectLen + sep + baLen

	dist := IndelDistance(diffABJoined, diffBAJoined)
	result := normDistance(dist, sectABLen+sectBALen)

	if sectLen == 0 {
		return result
	}

	// sect+ab and sect+ba share sect, so their distance to sect is the length difference
	sectABRatio := normDistance(sep+abLen, sectLen+sectABLen)
	sectBARatio := normDistance(sep+baLen, sectLen+sectBALen)

	return max(result, sectABRatio, sectBARatio)
}

// IndelDistance is the minimal number of insertions and deletions turning a into b.
func IndelDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	return len(ra) + len(rb) - 2*lcsLength(ra, rb)
}

// IndelRatio is the normalized Indel similarity on a 0..100 scale.
func IndelRatio(a, b string) float64 {
	return normDistance(IndelDistance(a, b), runeLen(a)+runeLen(b))
}

func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func normDistance(dist, lenSum int) float64 {
	if lenSum == 0 {
		return 100
	}
	return 100 - 100*float64(dist)/float64(lenSum)
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}

func runeLen(s string) int {
	return len([]rune(s))
}
