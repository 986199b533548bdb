package vectorstore

import "github.com/qdrant/go-client/qdrant"

// Payload attribute keys used for filtering. DocId+ChunkId is a logical
// key, not a storage-level primary key.
const (
	keyDocID   = "DocId"
	keyChunkID = "ChunkId"
	keyTitle   = "Title"
)

func matchInt(key string, value int64) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Integer{Integer: value},
				},
			},
		},
	}
}

func matchKeyword(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// docFilter matches every record of one document.
func docFilter(docID int64) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{matchInt(keyDocID, docID)}}
}

// titleFilter matches every record whose Title equals the given value.
func titleFilter(title string) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{matchKeyword(keyTitle, title)}}
}

// chunkFilter matches the records of one chunk (DocId AND ChunkId).
func chunkFilter(docID, chunkID int64) *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{
		matchInt(keyDocID, docID),
		matchInt(keyChunkID, chunkID),
	}}
}

// matchAllFilter matches every record: an empty conjunction.
func matchAllFilter() *qdrant.Filter {
	return &qdrant.Filter{Must: []*qdrant.Condition{}}
}

// anyDocFilter matches records whose DocId is any of the given ids
// (disjunction). An empty id list produces a filter that matches nothing;
// callers short-circuit before issuing a query with it.
func anyDocFilter(docIDs []int64) *qdrant.Filter {
	should := make([]*qdrant.Condition, len(docIDs))
	for i, id := range docIDs {
		should[i] = matchInt(keyDocID, id)
	}
	return &qdrant.Filter{Should: should}
}
