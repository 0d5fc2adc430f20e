package functions

import "strconv"

// Code identifies an operator family. Values follow the declaration order of
// the serialized network format and must not be reordered.
type Code int

// Operator codes.
const (
	CodeAffine Code = iota
	CodeConvolution
	CodeDepthwiseConvolution
	CodeDeconvolution
	CodeMaxPooling
	CodeAveragePooling
	CodeSumPooling
	CodeUnpooling
	CodeEmbed
	CodeSigmoid
	CodeSwish
	CodeTanh
	CodeReLU
	CodeLeakyReLU
	CodeSoftmax
	CodeELU
	CodeSELU
	CodeCReLU
	CodeCELU
	CodePReLU
	CodeBatchNormalization
	CodeMeanSubtraction
	CodeSum
	CodeMean
	CodeMax
	CodeMin
	CodeProd
	CodeReduceSum
	CodeReduceMean
	CodeAdd2
	CodeBcAdd2
	CodeSub2
	CodeMul2
	CodeDiv2
	CodePow2
	CodeAddScalar
	CodeMulScalar
	CodePowScalar
	CodeRSubScalar
	CodeRDivScalar
	CodeRPowScalar
	CodeSign
	CodeMinimum2
	CodeMaximum2
	CodeMinimumScalar
	CodeMaximumScalar
	CodeLogicalAnd
	CodeLogicalOr
	CodeLogicalXor
	CodeEqual
	CodeNotEqual
	CodeGreaterEqual
	CodeGreater
	CodeLessEqual
	CodeLess
	CodeLogicalAndScalar
	CodeLogicalOrScalar
	CodeLogicalXorScalar
	CodeEqualScalar
	CodeNotEqualScalar
	CodeGreaterEqualScalar
	CodeGreaterScalar
	CodeLessEqualScalar
	CodeLessScalar
	CodeLogicalNot
	CodeConstant
	CodeAbs
	CodeExp
	CodeLog
	CodeIdentity
	CodeBatchMatmul
	CodeConcatenate
	CodeSplit
	CodeStack
	CodeSlice
	CodeTranspose
	CodeBroadcast
	CodeOneHot
	CodeFlip
	CodeShift
	CodeReshape
	CodeMatrixDiag
	CodeMatrixDiagPart
	CodeDropout
	CodeRand
	CodeRandint
	CodeRandn
	CodeRandomCrop
	CodeRandomFlip
	CodeRandomShift
	CodeImageAugmentation
	CodeSigmoidCrossEntropy
	CodeBinaryCrossEntropy
	CodeSoftmaxCrossEntropy
	CodeCategoricalCrossEntropy
	CodeSquaredError
	CodeAbsoluteError
	CodeHuberLoss
	CodeEpsilonInsensitiveLoss
	CodeKLMultinomial
	CodeBinarySigmoid
	CodeBinaryTanh
	CodeBinaryConnectAffine
	CodeBinaryConnectConvolution
	CodeBinaryWeightAffine
	CodeBinaryWeightConvolution
	CodeINQAffine
	CodeINQConvolution
	CodeFixedPointQuantize
	CodePow2Quantize
	CodeTopNError
	CodeBinaryError
	CodeConfusionMatrix
	CodeVATNoise
	CodeUnlink
	CodeSink

	numCodes
)

var codeNames = [numCodes]string{
	"Affine",
	"Convolution",
	"DepthwiseConvolution",
	"Deconvolution",
	"MaxPooling",
	"AveragePooling",
	"SumPooling",
	"Unpooling",
	"Embed",
	"Sigmoid",
	"Swish",
	"Tanh",
	"ReLU",
	"LeakyReLU",
	"Softmax",
	"ELU",
	"SELU",
	"CReLU",
	"CELU",
	"PReLU",
	"BatchNormalization",
	"MeanSubtraction",
	"Sum",
	"Mean",
	"Max",
	"Min",
	"Prod",
	"ReduceSum",
	"ReduceMean",
	"Add2",
	"BcAdd2",
	"Sub2",
	"Mul2",
	"Div2",
	"Pow2",
	"AddScalar",
	"MulScalar",
	"PowScalar",
	"RSubScalar",
	"RDivScalar",
	"RPowScalar",
	"Sign",
	"Minimum2",
	"Maximum2",
	"MinimumScalar",
	"MaximumScalar",
	"LogicalAnd",
	"LogicalOr",
	"LogicalXor",
	"Equal",
	"NotEqual",
	"GreaterEqual",
	"Greater",
	"LessEqual",
	"Less",
	"LogicalAndScalar",
	"LogicalOrScalar",
	"LogicalXorScalar",
	"EqualScalar",
	"NotEqualScalar",
	"GreaterEqualScalar",
	"GreaterScalar",
	"LessEqualScalar",
	"LessScalar",
	"LogicalNot",
	"Constant",
	"Abs",
	"Exp",
	"Log",
	"Identity",
	"BatchMatmul",
	"Concatenate",
	"Split",
	"Stack",
	"Slice",
	"Transpose",
	"Broadcast",
	"OneHot",
	"Flip",
	"Shift",
	"Reshape",
	"MatrixDiag",
	"MatrixDiagPart",
	"Dropout",
	"Rand",
	"Randint",
	"Randn",
	"RandomCrop",
	"RandomFlip",
	"RandomShift",
	"ImageAugmentation",
	"SigmoidCrossEntropy",
	"BinaryCrossEntropy",
	"SoftmaxCrossEntropy",
	"CategoricalCrossEntropy",
	"SquaredError",
	"AbsoluteError",
	"HuberLoss",
	"EpsilonInsensitiveLoss",
	"KLMultinomial",
	"BinarySigmoid",
	"BinaryTanh",
	"BinaryConnectAffine",
	"BinaryConnectConvolution",
	"BinaryWeightAffine",
	"BinaryWeightConvolution",
	"INQAffine",
	"INQConvolution",
	"FixedPointQuantize",
	"Pow2Quantize",
	"TopNError",
	"BinaryError",
	"ConfusionMatrix",
	"VATNoise",
	"Unlink",
	"Sink",
}

func (c Code) String() string {
	if c < 0 || c >= numCodes {
		return "Code(" + strconv.Itoa(int(c)) + ")"
	}
	return codeNames[c]
}

// ParseCode returns the code for an operator name such as "Convolution".
func ParseCode(name string) (Code, bool) {
	for c, n := range codeNames {
		if n == name {
			return Code(c), true
		}
	}
	return 0, false
}
