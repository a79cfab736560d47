package srp

// Known-answer values for I="alice", P="password123" with the RFC 5054
// Appendix B salt and ephemeral exponents, computed for the SHA-512 and
// 3072-bit group profile.
var (
	vectorUsername = "alice"
	vectorPassword = "password123"
	vectorSalt     = mustHex("BEB25379D1A8581EB5A727673A2441EE")
	vectorA        = mustHex("60975527035CF2AD1989806F0407210BC81EDC04E2762A56AFD529DDDA2D4393")
	vectorB        = mustHex("E487CB59D31AC550471E81F00F6928E01DDA08E974A004F49E61F5D105284D20")

	vectorVerifier = mustHex("" +
		"9b5e061701ea7aeb39cf6e3519655a853cf94c75caf2555ef1faf759bb79cb47" +
		"7014e04a88d68ffc05323891d4c205b8de81c2f203d8fad1b24d2c109737f1be" +
		"bbd71f912447c4a03c26b9fad8edb3e780778e302529ed1ee138ccfc36d4ba31" +
		"3cc48b14ea8c22a0186b222e655f2df5603fd75df76b3b08ff8950069add03a7" +
		"54ee4ae88587cce1bfde36794dbae4592b7b904f442b041cb17aebad1e3aebe3" +
		"cbe99de65f4bb1fa00b0e7af06863db53b02254ec66e781e3b62a8212c86beb0" +
		"d50b5ba6d0b478d8c4e9bbcec21765326fbd14058d2bbde2c33045f03873e539" +
		"48d78b794f0790e48c36aed6e880f557427b2fc06db5e1e2e1d7e661ac482d18" +
		"e528d7295ef7437295ff1a72d402771713f16876dd050ae5b7ad53ccb90855c9" +
		"3956648358adfd966422f52498732d68d1d7fbef10d78034ab8dcb6f0fcf885c" +
		"c2b2ea2c3e6ac86609ea058a9da8cc63531dc915414df568b09482ddac1954de" +
		"c7eb714f6ff7d44cd5b86f6bd115810930637c01d0f6013bc9740fa2c633ba89")
	vectorClientPub = mustHex("" +
		"fab6f5d2615d1e323512e7991cc37443f487da604ca8c9230fcb04e541dce628" +
		"0b27ca4680b0374f179dc3bdc7553fe62459798c701ad864a91390a28c93b644" +
		"adbf9c00745b942b79f9012a21b9b78782319d83a1f8362866fbd6f46bfc0ddb" +
		"2e1ab6e4b45a9906b82e37f05d6f97f6a3eb6e182079759c4f6847837b62321a" +
		"c1b4fa68641fcb4bb98dd697a0c73641385f4bab25b793584cc39fc8d48d4bd8" +
		"67a9a3c10f8ea12170268e34fe3bbe6ff89998d60da2f3e4283cbec1393d52af" +
		"724a57230c604e9fbce583d7613e6bffd67596ad121a8707eec4694495703368" +
		"6a155f644d5c5863b48f61bdbf19a53eab6dad0a186b8c152e5f5d8cad4b0ef8" +
		"aa4ea5008834c3cd342e5e0f167ad04592cd8bd279639398ef9e114dfaaab919" +
		"e14e850989224ddd98576d79385d2210902e9f9b1f2d86cfa47ee244635465f7" +
		"1058421a0184be51dd10cc9d079e6f1604e7aa9b7cf7883c7d4ce12b06ebe160" +
		"81e23f27a231d18432d7d1bb55c28ae21ffcf005f57528d15a88881bb3bbb7fe")
	vectorServerPub = mustHex("" +
		"40f57088a482d4c7733384fe0d301fddca9080ad7d4f6fdf09a01006c3cb6d56" +
		"2e41639ae8fa21de3b5dba7585b275589bdb279863c562807b2b99083cd1429c" +
		"dbe89e25bfbd7e3cad3173b2e3c5a0b174da6d5391e6a06e465f037a40062548" +
		"39a56bf76da84b1c94e0ae208576156fe5c140a4ba4ffc9e38c3b07b88845fc6" +
		"f7ddda93381fe0ca6084c4cd2d336e5451c464ccb6ec65e7d16e548a273e8262" +
		"84af2559b6264274215960fff47bdd63d3aff064d6137af769661c9d4fee4738" +
		"2603c88eaa0980581d07758461b777e4356dda5835198b51feea308d70f75450" +
		"b71675c08c7d8302fd7539dd1ff2a11cb4258aa70d234436aa42b6a0615f3f91" +
		"5d55cc3b966b2716b36e4d1a06ce5e5d2ea3bee5a1270e8751da45b60b997b0f" +
		"fdb0f9962fee4f03bee780ba0a845b1d9271421783ae6601a61ea2e342e4f2e8" +
		"bc935a409ead19f221bd1b74e2964dd19fc845f60efc09338b60b6b256d8cac8" +
		"89cca306cc370a0b18c8b886e95da0af5235fef4393020d2b7f3056904759042")
	vectorSessionKey = mustHex("" +
		"5cbc219db052138ee1148c71cd4498963d682549ce91ca24f098468f06015beb" +
		"6af245c2093f98c3651bca83ab8cab2b580bbf02184fefdf26142f73df95ac50")
	vectorClientProof = mustHex("" +
		"5f7c14ab57ed0e94fd1d78c6b4dd09ed7e340b7e05d419a9fd760f6b35e523d1" +
		"310777a1ae1d2826f596f3a85116cc457c7c964d4f44ded5559da818c88b617f")
	vectorServerProof = mustHex("" +
		"2fa0e81f5cb73b88fa0964270f321dd641f2227a5d805c40f1bfe96aaf6a19ff" +
		"ce8e23287965a39eab9d5a02215f89e128177ed2c4f103e655a045531bcbf7ad")
)
