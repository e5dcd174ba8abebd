package rule

import "strings"

// builtinWordList is a compact common-English word list. It is not a full
// dictionary; it exists so the engine works out of the box and so tests
// run without external data. Real deployments extend it through the user
// dictionary.
const builtinWordList = `
a about above after again against all almost also always am an and any are
aren't around as at away back bad be because been before being below best
better between big both brown but by call came can can't cannot cant cat
come could couldn't day did didn't didnt do does doesn't doesnt dog done
don't dont down each early east easy eat
end enough even ever every fast few find first five fox for found four
from get give go goes going good got great had has hasn't have haven't he
head hear heard help her here high him his home house how i i'm i've if im
in into is isn't isnt it its ive just keep kind knew know large last late
lazy learn leave left less
let life light like line little long look looked low made make man many
mat may me mean men might mine more most mother move much must my name
near need never new next night no north not now number of off often old
on once one only open or other our out over own paragraph part people
place play point put quick ran read right run said sat saw say school
sea second see seem seen sentence set seven she should shouldn't shouldnt
show side
since six small so some something soon sound south spell start state still
stop story street such sun sure take tell ten text than that the their
them then there these they they're they've thing think third this those
thought three through time to today together told too took tree try turn
two under until up us use used very walk want was wasn't watch water way
we we've week well went were weren't west what when where which while
white who why will wind with without won't wont word words work world
would wouldn't wouldnt write year years yes yet you you're you've young
your youre
`

// builtinWords returns the embedded word list as a slice.
func builtinWords() []string {
	return strings.Fields(builtinWordList)
}
