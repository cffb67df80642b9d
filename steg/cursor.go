package steg

// planeCount is the number of bit-planes in an 8-bit sample.
const planeCount = 8

// planeMasks maps a bit-plane index (0 = least significant) to the mask that
// sets its bit and the mask that clears it.
func planeMasks(plane int) (set, clear uint8) {
	set = 1 << uint(plane)
	return set, ^set
}

// cursor addresses exactly one bit of one sample. It walks channel, column,
// row and then bit-plane, and becomes exhausted after the last slot of plane 7.
type cursor struct {
	row       int
	col       int
	channel   int
	plane     int
	exhausted bool
}

func (c *cursor) advance(height, width, channels int) {
	c.channel++
	if c.channel < channels {
		return
	}
	c.channel = 0

	c.col++
	if c.col < width {
		return
	}
	c.col = 0

	c.row++
	if c.row < height {
		return
	}
	c.row = 0

	if c.plane == planeCount-1 {
		c.exhausted = true
		return
	}
	c.plane++
}

// position returns how many slots have been consumed since the origin.
func (c *cursor) position(height, width, channels int) int {
	if c.exhausted {
		return height * width * channels * planeCount
	}
	return ((c.plane*height+c.row)*width+c.col)*channels + c.channel
}
