// Package carrier converts between image.Image values and steg.PixelBuffer
// carriers, and reads and writes carriers in lossless file formats.
//
// PNG, BMP and TIFF are supported. Lossy formats are refused on output
// because re-quantising the samples destroys the hidden low-order bits.
//
//	pb, err := carrier.Load("cover.png", carrier.RGB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	codec, _ := steg.NewCodec(pb)
//	codec.EncodeText("meet at noon")
//	carrier.Save("cover-out.png", pb)
package carrier
