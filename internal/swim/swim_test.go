package swim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMFMRoundTrip(t *testing.T) {
	for _, b := range []uint8{0x00, 0xFF, 0x55, 0xAA, 0x4E, 0xA1} {
		enc, _ := MFMEncode(b, false)
		require.Equal(t, b, MFMDecode(enc), "round trip for %#x", b)
	}
}

func TestCRCUpdateByteMatchesBitwise(t *testing.T) {
	crc := CRCInit
	for i := 0; i < 8; i++ {
		crc = CRCUpdateBit(crc, (0xA5>>uint(7-i))&1 != 0)
	}
	require.Equal(t, CRCUpdateByte(CRCInit, 0xA5), crc)
}

func TestISMSyncDetection(t *testing.T) {
	ism := &ISM{}
	ism.Reset()

	for i := 15; i >= 0; i-- {
		ism.ShiftReadBit((SyncMarker>>uint(i))&1 != 0)
	}
	require.True(t, ism.synced)
	require.Equal(t, 1, ism.FIFO.Len())

	e, ok := ism.FIFO.Pop()
	require.True(t, ok)
	require.Equal(t, FIFOMarker, e.Kind)
}

func TestISMDataByteAfterSync(t *testing.T) {
	ism := &ISM{}
	ism.Reset()
	ism.synced = true
	ism.crc = CRCInit

	enc, _ := MFMEncode(0x42, false)
	for i := 15; i >= 0; i-- {
		ism.ShiftReadBit((enc>>uint(i))&1 != 0)
	}

	e, ok := ism.FIFO.Pop()
	require.True(t, ok)
	require.Equal(t, FIFOData, e.Kind)
	require.Equal(t, uint8(0x42), e.Value)
}

func TestIWMMotorGatesShifter(t *testing.T) {
	c := New(nil)
	c.InsertDisk(0, []byte{0xFF, 0x00, 0xFF, 0x00})
	c.SetDriveSelect(true)

	consumed := c.Tick(1000)
	require.Equal(t, 0, consumed, "shifter idle while motor is off")

	c.IWM.Drives[0].Motor = true
	consumed = c.Tick(1000)
	require.Greater(t, consumed, 0)
}

func TestModeSwitchToISM(t *testing.T) {
	c := New(nil)
	require.Equal(t, modeIWM, c.mode)
	c.WriteByte(regISMModeSwitch<<9, 0x40)
	require.Equal(t, modeISM, c.mode)
}
