package dynamodb

import "strconv"

// PK/SK prefix constants.
const (
	prefixDetector     = "DETECTOR#"
	prefixGroup        = "GROUP#"
	prefixState        = "STATE#"
	prefixActionStatus = "ACTIONSTATUS#"
	prefixFireHist     = "FIREHIST#"
)

func detectorPK(id int64) string { return prefixDetector + strconv.FormatInt(id, 10) }
func groupPK(groupID string) string { return prefixGroup + groupID }

// stateSK keeps the "" (ungrouped) key addressable as a real sort key.
func stateSK(groupKey string) string { return prefixState + groupKey }

func actionStatusSK(actionID string) string { return prefixActionStatus + actionID }

func fireHistSK(workflowID, eventID string) string {
	return prefixFireHist + workflowID + "#" + eventID
}
