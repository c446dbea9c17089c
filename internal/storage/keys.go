package storage

// ContentKey returns the object key for a leaf's original bytes. Keys
// derive from the node id, never the path, so renames and moves leave
// stored objects alone.
func ContentKey(nodeID, filename string) string {
	return nodeID + "/" + filename
}

// ThumbKey returns the object key for a leaf's thumbnail.
func ThumbKey(nodeID string) string {
	return "thumbs/" + nodeID + ".jpg"
}
